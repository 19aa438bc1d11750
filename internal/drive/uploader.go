// Package drive stores incident photos in a Google Drive folder and shares
// them with anyone holding the link.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dharsanguruparan/LineReport/internal/credentials"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

// PublicBase is the prefix of every link Upload returns.
const PublicBase = "https://drive.google.com/uc?id="

// ErrNotDriveURL is returned by Delete for links this package did not produce.
var ErrNotDriveURL = errors.New("not a drive photo url")

// Uploader creates files inside one parent folder.
type Uploader struct {
	creds    credentials.Source
	folderID string
	opts     []option.ClientOption

	mu  sync.Mutex
	svc *drive.Service
}

// New creates an Uploader for folderID. The Drive client is built lazily.
func New(creds credentials.Source, folderID string, opts ...option.ClientOption) (*Uploader, error) {
	if folderID == "" {
		return nil, errors.New("drive: folder id is required")
	}
	return &Uploader{creds: creds, folderID: folderID, opts: opts}, nil
}

func (u *Uploader) service(ctx context.Context) (*drive.Service, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.svc != nil {
		return u.svc, nil
	}
	opts, err := credentials.ClientOptions(ctx, u.creds, u.opts...)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("init drive client: %w", err)
	}
	u.svc = svc
	return svc, nil
}

// Upload stores photo in the folder, grants anyone-with-link read access and
// returns the public link.
func (u *Uploader) Upload(ctx context.Context, photo *model.Photo) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", errors.New("drive: empty photo")
	}
	svc, err := u.service(ctx)
	if err != nil {
		return "", err
	}
	meta := &drive.File{
		Name:     photo.Name,
		Parents:  []string{u.folderID},
		MimeType: photo.ContentType,
	}
	created, err := svc.Files.Create(meta).
		Media(bytes.NewReader(photo.Data), googleapi.ContentType(photo.ContentType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	perm := &drive.Permission{Role: "reader", Type: "anyone"}
	if _, err := svc.Permissions.Create(created.Id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("share file %s: %w", created.Id, err)
	}
	return PublicURL(created.Id), nil
}

// Delete removes the file behind a link returned by Upload.
func (u *Uploader) Delete(ctx context.Context, link string) error {
	id, err := FileID(link)
	if err != nil {
		return err
	}
	svc, err := u.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Files.Delete(id).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}

// PublicURL builds the shareable link for a Drive file ID.
func PublicURL(fileID string) string {
	return PublicBase + url.QueryEscape(fileID)
}

// FileID extracts the file ID from a link built by PublicURL.
func FileID(link string) (string, error) {
	if !strings.HasPrefix(link, PublicBase) {
		return "", fmt.Errorf("%w: %q", ErrNotDriveURL, link)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotDriveURL, err)
	}
	id := parsed.Query().Get("id")
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrNotDriveURL, link)
	}
	return id, nil
}
