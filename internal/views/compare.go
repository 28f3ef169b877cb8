// internal/views/compare.go
package views

import "sort"

// SelectionMode controls how many runs per model the comparison shows.
type SelectionMode int

const (
	// LatestOnly keeps each selected model's most recent run.
	LatestOnly SelectionMode = iota
	// AllRuns keeps every run of each selected model.
	AllRuns
)

// ComparisonView projects runs of the selected models into a comparison
// matrix. Selection, mode and sort state are owned by the view and passed in
// explicitly through its methods; there is no ambient global.
type ComparisonView struct {
	all      []Row
	selected map[string]struct{}
	mode     SelectionMode

	sortColumn Column
	descending bool
}

// NewComparisonView builds a comparison view over index-ordered rows
// (newest first).
func NewComparisonView(rows []Row) *ComparisonView {
	return &ComparisonView{
		all:        rows,
		selected:   make(map[string]struct{}),
		mode:       LatestOnly,
		sortColumn: ColumnAccuracy,
		descending: true,
	}
}

// Select replaces the set of selected model names.
func (v *ComparisonView) Select(models ...string) {
	v.selected = make(map[string]struct{}, len(models))
	for _, model := range models {
		v.selected[model] = struct{}{}
	}
}

// Toggle adds the model to the selection, or removes it when already selected.
func (v *ComparisonView) Toggle(model string) {
	if _, ok := v.selected[model]; ok {
		delete(v.selected, model)
		return
	}
	v.selected[model] = struct{}{}
}

// Selected returns the selected model names in lexical order.
func (v *ComparisonView) Selected() []string {
	models := make([]string, 0, len(v.selected))
	for model := range v.selected {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// SetMode switches between latest-only and all-runs selection.
func (v *ComparisonView) SetMode(mode SelectionMode) { v.mode = mode }

// ClickColumn sorts by the given column, toggling direction on repeated
// clicks: first click sorts descending, the next ascending, and switching to
// a different column resets to descending.
func (v *ComparisonView) ClickColumn(column Column) {
	if v.sortColumn == column {
		v.descending = !v.descending
	} else {
		v.sortColumn = column
		v.descending = true
	}
}

// SortState reports the current sort column and direction.
func (v *ComparisonView) SortState() (Column, bool) {
	return v.sortColumn, v.descending
}

// Rows returns the comparison rows under the current selection, mode and sort
// state. In latest-only mode the result contains exactly one row per selected
// model: the run with the greatest timestamp. Ties in the sort column break
// on model name ascending.
func (v *ComparisonView) Rows() []Row {
	var rows []Row
	if v.mode == LatestOnly {
		seen := make(map[string]struct{}, len(v.selected))
		// Entries arrive newest first, so the first hit per model wins.
		for _, row := range v.all {
			if _, ok := v.selected[row.Model]; !ok {
				continue
			}
			if _, dup := seen[row.Model]; dup {
				continue
			}
			seen[row.Model] = struct{}{}
			rows = append(rows, row)
		}
	} else {
		for _, row := range v.all {
			if _, ok := v.selected[row.Model]; ok {
				rows = append(rows, row)
			}
		}
	}

	sortRows(rows, v.sortColumn, v.descending)
	return rows
}
