package dataset

import (
	"context"
	"strconv"
)

// DefaultMissing marks a cell whose measurement failed. It is never a number
// so it cannot be mistaken for a real score.
const DefaultMissing = "NA"

// IdentityFields are the leading columns of every row.
var IdentityFields = []string{"filepath", "len_seconds"}

// Cell is one scored field of a row. A cell with Err set has no score.
type Cell struct {
	Field string
	Score float64
	Err   error
}

func (c Cell) Missing() bool { return c.Err != nil }

// Row is one evaluated clip. Cell order is the column order.
type Row struct {
	Path     string
	Duration float64
	Cells    []Cell
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Record renders the row as strings, writing missing for failed cells.
func (r Row) Record(missing string) []string {
	out := make([]string, 0, len(IdentityFields)+len(r.Cells))
	out = append(out, r.Path, formatFloat(r.Duration))
	for _, c := range r.Cells {
		if c.Missing() {
			out = append(out, missing)
			continue
		}
		out = append(out, formatFloat(c.Score))
	}
	return out
}

// Sink receives finished rows.
type Sink interface {
	// Open prepares the sink for rows with the given header.
	Open(ctx context.Context, header []string) error
	Write(ctx context.Context, row Row) error
	Close() error
}

// Multi fans rows out to every sink in order.
type Multi []Sink

func (m Multi) Open(ctx context.Context, header []string) error {
	for _, s := range m {
		if err := s.Open(ctx, header); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Write(ctx context.Context, row Row) error {
	for _, s := range m {
		if err := s.Write(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
