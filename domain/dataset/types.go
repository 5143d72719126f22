package dataset

import (
	"math"
	"sort"
	"strconv"
)

// Row is one observation. Numeric cells live in Values, categorical cells in
// Labels. A name absent from both maps, or a NaN value, is missing.
type Row struct {
	Values map[string]float64 `json:"values"`
	Labels map[string]string  `json:"labels,omitempty"`
}

// NewRow creates a row from numeric values
func NewRow(values map[string]float64) Row {
	return Row{Values: values}
}

// Value returns the numeric cell for name and whether it is present
func (r Row) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Label returns the categorical cell for name. Numeric cells are formatted so
// coded group columns (1, 2, 3) work as labels.
func (r Row) Label(name string) (string, bool) {
	if l, ok := r.Labels[name]; ok && l != "" {
		return l, true
	}
	if v, ok := r.Value(name); ok {
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return "", false
}

// Dataset is an ordered, read-only sequence of observation rows.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates a dataset and derives the column list from the rows when none is given
func New(columns []string, rows []Row) *Dataset {
	if len(columns) == 0 {
		columns = deriveColumns(rows)
	}
	return &Dataset{Columns: columns, Rows: rows}
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether any row carries a cell for name
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns a fresh slice of the numeric column with NaN for missing cells
func (d *Dataset) Column(name string) []float64 {
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		if v, ok := row.Value(name); ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Valid returns the non-missing values of a numeric column
func (d *Dataset) Valid(name string) []float64 {
	out := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		if v, ok := row.Value(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Listwise returns the listwise-valid subset for names: one slice per kept row
// (in the order of names) and the original row indices. Rows with a missing
// value in any of the names are excluded.
func (d *Dataset) Listwise(names ...string) ([][]float64, []int) {
	data := make([][]float64, 0, len(d.Rows))
	index := make([]int, 0, len(d.Rows))
	for i, row := range d.Rows {
		vals := make([]float64, len(names))
		complete := true
		for j, name := range names {
			v, ok := row.Value(name)
			if !ok {
				complete = false
				break
			}
			vals[j] = v
		}
		if complete {
			data = append(data, vals)
			index = append(index, i)
		}
	}
	return data, index
}

// GroupBy builds a group assignment from a categorical column
func (d *Dataset) GroupBy(column string) GroupAssignment {
	groups := make(GroupAssignment, len(d.Rows))
	for i, row := range d.Rows {
		if l, ok := row.Label(column); ok {
			groups[i] = l
		}
	}
	return groups
}

// Split partitions the valid values of dependent by group label. Rows whose
// label or value is missing are excluded. Levels are returned sorted.
func (d *Dataset) Split(dependent string, groups GroupAssignment) ([]string, [][]float64) {
	byLabel := make(map[string][]float64)
	for i, row := range d.Rows {
		if i >= len(groups) || groups[i] == "" {
			continue
		}
		v, ok := row.Value(dependent)
		if !ok {
			continue
		}
		byLabel[groups[i]] = append(byLabel[groups[i]], v)
	}

	levels := groups.Levels()
	data := make([][]float64, len(levels))
	for i, l := range levels {
		data[i] = byLabel[l]
	}
	return levels, data
}

// GroupAssignment maps row index to a group label; "" marks an unassigned row.
type GroupAssignment []string

// Levels returns the distinct assigned labels in sorted order
func (g GroupAssignment) Levels() []string {
	seen := make(map[string]bool)
	levels := make([]string, 0)
	for _, l := range g {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels
}

func deriveColumns(rows []Row) []string {
	seen := make(map[string]bool)
	cols := make([]string, 0)
	for _, row := range rows {
		for name := range row.Values {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
		for name := range row.Labels {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
