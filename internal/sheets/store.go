// Package sheets appends incident rows to, and reads them back from, the first
// worksheet of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dharsanguruparan/LineReport/internal/credentials"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

// DefaultRange addresses columns A-G of the first visible worksheet; a range
// without a sheet name always resolves there.
const DefaultRange = "A:G"

// Store wraps the Sheets values API for one spreadsheet.
type Store struct {
	creds         credentials.Source
	spreadsheetID string
	readRange     string
	opts          []option.ClientOption

	mu  sync.Mutex
	svc *sheets.Service
}

// New creates a Store. The Sheets client is built on first use so a broken
// credential surfaces on the request that needs it.
func New(creds credentials.Source, spreadsheetID, readRange string, opts ...option.ClientOption) (*Store, error) {
	if spreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if readRange == "" {
		readRange = DefaultRange
	}
	return &Store{
		creds:         creds,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		opts:          opts,
	}, nil
}

func (s *Store) service(ctx context.Context) (*sheets.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.svc != nil {
		return s.svc, nil
	}
	opts, err := credentials.ClientOptions(ctx, s.creds, s.opts...)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	s.svc = svc
	return svc, nil
}

// Append adds r as one row after the last row of the table. Values are stored
// verbatim so timestamps round-trip as text.
func (s *Store) Append(ctx context.Context, r model.Report) error {
	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	values := r.Values()
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	body := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err = svc.Spreadsheets.Values.Append(s.spreadsheetID, s.readRange, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// List returns stored reports oldest first. The first row is the header and
// is skipped, as are blank rows. A positive limit keeps only the newest rows.
func (s *Store) List(ctx context.Context, limit int) ([]model.Report, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return decodeRows(resp.Values, limit), nil
}

func decodeRows(values [][]interface{}, limit int) []model.Report {
	if len(values) <= 1 {
		return nil
	}
	out := make([]model.Report, 0, len(values)-1)
	for _, raw := range values[1:] {
		cells := make([]string, len(raw))
		for i, v := range raw {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		r := model.ReportFromValues(cells)
		if r.Blank() {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
