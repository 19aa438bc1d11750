// Package report collects incident reports: it validates the form, uploads the
// optional photo and appends the row.
package report

import "strings"

// State is a step of the report form lifecycle.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateValidating
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fields are the values an operator types or selects.
type Fields struct {
	Operator    string
	Machine     string
	Product     string
	Order       string
	Description string
}

// Trimmed returns f with surrounding whitespace removed from every value.
func (f Fields) Trimmed() Fields {
	return Fields{
		Operator:    strings.TrimSpace(f.Operator),
		Machine:     strings.TrimSpace(f.Machine),
		Product:     strings.TrimSpace(f.Product),
		Order:       strings.TrimSpace(f.Order),
		Description: strings.TrimSpace(f.Description),
	}
}

// Missing names the required fields that are empty, in form order.
func (f Fields) Missing() []string {
	var out []string
	for _, field := range []struct {
		name, value string
	}{
		{"operator", f.Operator},
		{"machine", f.Machine},
		{"product", f.Product},
		{"order", f.Order},
		{"description", f.Description},
	} {
		if strings.TrimSpace(field.value) == "" {
			out = append(out, field.name)
		}
	}
	return out
}

// Form is what the page renders: current state, input values and the outcome
// of the last submit action.
type Form struct {
	State  State
	Fields Fields

	// Warning is set when validation sent the form back to collecting.
	Warning string
	// Err is set in StateFailed.
	Err error
	// Notice and PhotoURL confirm the last successful submission. They survive
	// the reset to a fresh form.
	Notice   string
	PhotoURL string
}

// Collect performs the Idle to Collecting transition with the values the
// operator entered. Forms already past Idle just take the new values.
func (f Form) Collect(fields Fields) Form {
	if f.State == StateIdle {
		f.State = StateCollecting
	}
	f.Fields = fields
	return f
}

// Reset performs the Succeeded to Collecting transition: inputs return to
// their defaults while the confirmation stays visible. Other states are
// returned unchanged.
func (f Form) Reset(defaults Fields) Form {
	if f.State != StateSucceeded {
		return f
	}
	return Form{
		State:    StateCollecting,
		Fields:   defaults,
		Notice:   f.Notice,
		PhotoURL: f.PhotoURL,
	}
}
