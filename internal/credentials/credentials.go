// Package credentials turns the service-account blob from the environment
// into an authorization handle shared by the spreadsheet and storage clients.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dharsanguruparan/LineReport/internal/config"
)

// EnvKey names the variable holding the service-account JSON.
const EnvKey = "GOOGLE_SERVICE_ACCOUNT_JSON"

// Scopes grants spreadsheet and drive read/write access.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// Source hands out the authorization handle. Implementations must return the
// same handle on every call.
type Source interface {
	Credentials(ctx context.Context) (*google.Credentials, error)
}

// Loader parses the blob once, on first use, and caches the result. A parse
// failure is cached too: the blob is immutable for the life of the process.
type Loader struct {
	load func() (*google.Credentials, error)
}

// NewLoader prepares a Loader for raw. Nothing is parsed until Credentials is
// called.
func NewLoader(raw string, scopes ...string) *Loader {
	if len(scopes) == 0 {
		scopes = Scopes
	}
	blob := []byte(raw)
	return &Loader{load: sync.OnceValues(func() (*google.Credentials, error) {
		return parse(blob, scopes)
	})}
}

// Credentials returns the cached handle or the cached configuration error.
func (l *Loader) Credentials(ctx context.Context) (*google.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.load()
}

const serviceAccountType = "service_account"

func parse(blob []byte, scopes []string) (*google.Credentials, error) {
	if len(blob) == 0 {
		return nil, &config.Error{Key: EnvKey, Err: errors.New("missing env var")}
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return nil, &config.Error{Key: EnvKey, Err: errors.New("malformed JSON")}
	}
	if head.Type != serviceAccountType {
		return nil, &config.Error{Key: EnvKey, Err: fmt.Errorf("credential type %q is not %s", head.Type, serviceAccountType)}
	}
	// The token source outlives any single request, so it must not inherit a
	// request context.
	creds, err := google.CredentialsFromJSON(context.Background(), blob, scopes...)
	if err != nil {
		return nil, &config.Error{Key: EnvKey, Err: err}
	}
	return creds, nil
}

// ClientOptions resolves src into client options for a Google API service,
// followed by extra. A nil src yields only extra, which tests use to point
// clients at a fake endpoint.
func ClientOptions(ctx context.Context, src Source, extra ...option.ClientOption) ([]option.ClientOption, error) {
	if src == nil {
		return extra, nil
	}
	creds, err := src.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return append([]option.ClientOption{option.WithCredentials(creds)}, extra...), nil
}
