package telemetry

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage type of a Column.
type Kind int

const (
	KindFloat Kind = iota
	KindTime
	KindString
)

// Column is one named series of telemetry values. Only the slice matching
// Kind is populated. Missing floats are NaN and missing times are zero.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Times   []time.Time
	Strings []string
}

// FloatColumn returns a numeric column.
func FloatColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: values}
}

// TimeColumn returns a timestamp column.
func TimeColumn(name string, values []time.Time) Column {
	return Column{Name: name, Kind: KindTime, Times: values}
}

// StringColumn returns a column of raw strings.
func StringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	switch c.Kind {
	case KindTime:
		return len(c.Times)
	case KindString:
		return len(c.Strings)
	default:
		return len(c.Floats)
	}
}

// Float returns row i as a number, or NaN if it has no numeric value.
func (c Column) Float(i int) float64 {
	switch c.Kind {
	case KindFloat:
		return c.Floats[i]
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Strings[i]), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Time returns row i as a UTC timestamp. Numeric cells are never treated as
// timestamps.
func (c Column) Time(i int) (time.Time, bool) {
	switch c.Kind {
	case KindTime:
		t := c.Times[i]
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case KindString:
		return ParseTime(c.Strings[i])
	default:
		return time.Time{}, false
	}
}

// Key returns row i formatted as an identifier, used to match index values
// against turbine ids.
func (c Column) Key(i int) string {
	switch c.Kind {
	case KindString:
		return c.Strings[i]
	case KindTime:
		return c.Times[i].UTC().Format(time.RFC3339)
	default:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	}
}

// Distinct returns the distinct keys of the column in first-seen order.
func (c Column) Distinct() []string {
	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < c.Len(); i++ {
		k := c.Key(i)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	case KindString:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	default:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	}
	return out
}

// Index is the row index of a Table. With no levels the rows are addressed
// by position only.
type Index struct {
	Levels []Column
}

// MultiLevel reports whether the index has more than one level.
func (idx Index) MultiLevel() bool {
	return len(idx.Levels) > 1
}

// Table is a column-oriented telemetry table.
type Table struct {
	Columns []Column
	Index   Index
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	if len(t.Columns) > 0 {
		return t.Columns[0].Len()
	}
	if len(t.Index.Levels) > 0 {
		return t.Index.Levels[0].Len()
	}
	return 0
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Take returns a new table holding only the given rows, in order. Every index
// level is preserved.
func (t *Table) Take(rows []int) *Table {
	out := &Table{
		Columns: make([]Column, len(t.Columns)),
		Index:   Index{Levels: make([]Column, len(t.Index.Levels))},
	}
	for i, c := range t.Columns {
		out.Columns[i] = c.take(rows)
	}
	for i, l := range t.Index.Levels {
		out.Index.Levels[i] = l.take(rows)
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}
