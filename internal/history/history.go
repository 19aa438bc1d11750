// Package history builds the browsable, filterable view of stored reports and
// exports it.
package history

import (
	"context"
	"slices"
	"strings"

	"github.com/dharsanguruparan/LineReport/internal/logger"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

// Lister reads stored reports oldest first; limit <= 0 means all.
type Lister interface {
	List(ctx context.Context, limit int) ([]model.Report, error)
}

// FetchError wraps a failed read of the backing store.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "load history: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Filter narrows the view. Empty fields do not filter.
type Filter struct {
	Operator string `form:"operator" json:"operator"`
	Machine  string `form:"machine" json:"machine"`
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.Operator != "" || f.Machine != ""
}

// View is one rendering of the history panel.
type View struct {
	Filter Filter `json:"filter"`
	// Total counts the fetched rows before filtering.
	Total int `json:"total"`
	// Machines is the sorted distinct set of machines in the fetched rows.
	Machines []string       `json:"machines"`
	Rows     []model.Report `json:"rows"`
}

// Empty is true when the store had no reports at all.
func (v *View) Empty() bool {
	return v.Total == 0
}

// Viewer loads views from a Lister.
type Viewer struct {
	log   *logger.Logger
	store Lister
	limit int
}

// NewViewer creates a Viewer that reads at most limit recent rows.
func NewViewer(log *logger.Logger, store Lister, limit int) *Viewer {
	if log == nil {
		log = logger.Nop()
	}
	return &Viewer{log: log.With("component", "history"), store: store, limit: limit}
}

// Load fetches the recent rows and applies f.
func (v *Viewer) Load(ctx context.Context, f Filter) (*View, error) {
	rows, err := v.store.List(ctx, v.limit)
	if err != nil {
		v.log.Error("history fetch failed", "error", err)
		return nil, &FetchError{Err: err}
	}
	return Build(rows, f), nil
}

// Build projects rows through f without touching the input slice.
func Build(rows []model.Report, f Filter) *View {
	return &View{
		Filter:   f,
		Total:    len(rows),
		Machines: DistinctMachines(rows),
		Rows:     Apply(rows, f),
	}
}

// Apply keeps rows whose operator contains f.Operator case-insensitively, then
// rows whose machine equals f.Machine exactly. The operator text is matched as
// typed, surrounding spaces included.
func Apply(rows []model.Report, f Filter) []model.Report {
	needle := strings.ToLower(f.Operator)
	out := make([]model.Report, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !strings.Contains(strings.ToLower(r.Operator), needle) {
			continue
		}
		if f.Machine != "" && r.Machine != f.Machine {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DistinctMachines returns the sorted set of non-empty machine values.
func DistinctMachines(rows []model.Report) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		if r.Machine == "" {
			continue
		}
		if _, ok := seen[r.Machine]; ok {
			continue
		}
		seen[r.Machine] = struct{}{}
		out = append(out, r.Machine)
	}
	slices.Sort(out)
	return out
}
