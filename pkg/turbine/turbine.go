// Package turbine isolates per-turbine rows from a plant telemetry table.
package turbine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/windboard/windboard/pkg/telemetry"
)

// NameColumn is the column that carries turbine ids when the index does not.
const NameColumn = "Wind_turbine_name"

// ErrTurbineNotFound is returned when a turbine has no rows in the table.
var ErrTurbineNotFound = errors.New("turbine not found in telemetry")

// LevelSchema describes one level of a row index.
type LevelSchema struct {
	Name   string
	Values []string
}

// DetectLevel returns the first level whose values intersect ids.
func DetectLevel(levels []LevelSchema, ids []string) (int, bool) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i, level := range levels {
		for _, v := range level.Values {
			if _, ok := want[v]; ok {
				return i, true
			}
		}
	}
	return 0, false
}

// Mode is how a Slicer selects a turbine's rows.
type Mode int

const (
	// ByIndexLevel filters on a level of a multi-level index.
	ByIndexLevel Mode = iota
	// ByColumn filters on the turbine name column.
	ByColumn
	// Whole treats the whole table as a single turbine.
	Whole
)

func (m Mode) String() string {
	switch m {
	case ByIndexLevel:
		return "index_level"
	case ByColumn:
		return "column"
	default:
		return "whole_table"
	}
}

// Slicer selects the rows belonging to one turbine.
type Slicer struct {
	table  *telemetry.Table
	mode   Mode
	level  int
	column string
}

// Resolve decides how to slice table per turbine given the plant's turbine
// ids.
func Resolve(table *telemetry.Table, ids []string) Slicer {
	s := Slicer{table: table, mode: Whole}
	if table == nil {
		return s
	}
	if table.Index.MultiLevel() {
		schema := make([]LevelSchema, len(table.Index.Levels))
		for i, l := range table.Index.Levels {
			schema[i] = LevelSchema{Name: l.Name, Values: l.Distinct()}
		}
		if level, ok := DetectLevel(schema, ids); ok {
			s.mode = ByIndexLevel
			s.level = level
			return s
		}
	}
	if name, ok := nameColumn(table); ok {
		s.mode = ByColumn
		s.column = name
	}
	return s
}

func nameColumn(table *telemetry.Table) (string, bool) {
	if _, ok := table.Column(NameColumn); ok {
		return NameColumn, true
	}
	for _, name := range table.Names() {
		if strings.EqualFold(name, NameColumn) {
			return name, true
		}
	}
	return "", false
}

// Mode returns the slicing mode chosen by Resolve.
func (s Slicer) Mode() Mode {
	return s.mode
}

// Level returns the index level holding turbine ids in ByIndexLevel mode.
func (s Slicer) Level() int {
	return s.level
}

// Slice returns the rows for turbine id. In Whole mode every row is returned.
func (s Slicer) Slice(id string) (out *telemetry.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("failed to slice turbine %s: %v", id, r)
		}
	}()
	if s.table == nil {
		return nil, ErrTurbineNotFound
	}

	var key telemetry.Column
	switch s.mode {
	case ByIndexLevel:
		key = s.table.Index.Levels[s.level]
	case ByColumn:
		key, _ = s.table.Column(s.column)
	default:
		return s.table, nil
	}

	out = s.table.Filter(func(row int) bool {
		return key.Key(row) == id
	})
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTurbineNotFound, id)
	}
	return out, nil
}
