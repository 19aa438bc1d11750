// Package model contains the types shared by the form, the stores and the
// history view.
package model

import (
	"strings"
	"time"
)

// TimestampLayout is how submission times are persisted.
const TimestampLayout = "2006-01-02 15:04:05"

// Columns is the persisted row order. Exports use it as their header row.
var Columns = []string{
	"Fecha y hora",
	"Operario",
	"Máquina",
	"Producto",
	"Orden",
	"Descripción",
	"Foto",
}

var defaultMachines = []string{
	"MAQ-2", "MAQ-3", "MAQ-4", "MAQ-5", "MAQ-6", "MAQ-7", "MAQ-8", "MAQ-9",
	"MAQ-10", "MAQ-13", "MAQ-14", "MAQ-15", "MAQ-16-A", "MAQ-16-B", "MAQ-18",
	"MAQ-19", "MAQ-20", "MAQ-21", "MAQ-22",
}

// DefaultMachines returns a fresh copy of the built-in machine catalog.
func DefaultMachines() []string {
	out := make([]string, len(defaultMachines))
	copy(out, defaultMachines)
	return out
}

// Report is one logged production-line incident.
type Report struct {
	Timestamp   string `json:"timestamp"`
	Operator    string `json:"operator"`
	Machine     string `json:"machine"`
	Product     string `json:"product"`
	Order       string `json:"order"`
	Description string `json:"description"`
	PhotoURL    string `json:"photoUrl"`
}

// FormatTimestamp renders t the way rows store it.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Values returns the seven cells of the row in persisted order.
func (r Report) Values() []string {
	return []string{r.Timestamp, r.Operator, r.Machine, r.Product, r.Order, r.Description, r.PhotoURL}
}

// ReportFromValues is the inverse of Values. Missing trailing cells are empty
// and surplus cells are ignored.
func ReportFromValues(values []string) Report {
	cell := func(i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	return Report{
		Timestamp:   cell(0),
		Operator:    cell(1),
		Machine:     cell(2),
		Product:     cell(3),
		Order:       cell(4),
		Description: cell(5),
		PhotoURL:    cell(6),
	}
}

// Blank reports whether every cell is empty.
func (r Report) Blank() bool {
	for _, v := range r.Values() {
		if v != "" {
			return false
		}
	}
	return true
}

// Photo is an uploaded image held in memory until it is handed to storage.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the photo length in bytes.
func (p *Photo) Size() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Data))
}
