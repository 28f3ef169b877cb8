// internal/views/table.go
package views

import "strings"

// DefaultPageSize is the fixed table page size.
const DefaultPageSize = 10

// TableView paginates the already-sorted run index. Sorting and filtering are
// re-derived from the full in-memory entry set; changing them never requires
// another aggregation pass.
type TableView struct {
	all      []Row
	visible  []Row
	pageSize int
	page     int

	sortColumn  Column
	descending  bool
	modelFilter string
	quantFilter string
}

// NewTableView builds a table view over index entries, which are expected in
// index order (newest first). A non-positive pageSize falls back to the
// default.
func NewTableView(rows []Row, pageSize int) *TableView {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	v := &TableView{
		all:      rows,
		pageSize: pageSize,
		page:     1,
	}
	v.rebuild()
	return v
}

// SetModelFilter keeps only rows whose model name contains the given
// substring, case-insensitively. An empty filter keeps everything.
func (v *TableView) SetModelFilter(filter string) {
	v.modelFilter = strings.TrimSpace(filter)
	v.page = 1
	v.rebuild()
}

// SetQuantFilter keeps only rows with the given quantization label.
func (v *TableView) SetQuantFilter(label string) {
	v.quantFilter = strings.TrimSpace(label)
	v.page = 1
	v.rebuild()
}

// ClickColumn sorts by the given column. The first click on a column sorts
// descending; clicking it again toggles to ascending; switching to another
// column resets to descending.
func (v *TableView) ClickColumn(column Column) {
	if v.sortColumn == column {
		v.descending = !v.descending
	} else {
		v.sortColumn = column
		v.descending = true
	}
	v.rebuild()
}

// SortState reports the current sort column and direction.
func (v *TableView) SortState() (Column, bool) {
	return v.sortColumn, v.descending
}

// Restore reinstates a saved sort state, used when the view is rebuilt over a
// fresh index.
func (v *TableView) Restore(column Column, descending bool) {
	v.sortColumn = column
	v.descending = descending
	v.rebuild()
}

// ModelFilter returns the active model name filter.
func (v *TableView) ModelFilter() string { return v.modelFilter }

// SetPage moves to the requested page, clamped to [1, TotalPages]. An
// out-of-range request clamps rather than errors.
func (v *TableView) SetPage(page int) {
	v.page = clampPage(page, v.TotalPages())
}

// NextPage advances one page, clamped at the last page.
func (v *TableView) NextPage() { v.SetPage(v.page + 1) }

// PrevPage goes back one page, clamped at the first page.
func (v *TableView) PrevPage() { v.SetPage(v.page - 1) }

// Page returns the current page number.
func (v *TableView) Page() int { return v.page }

// TotalPages returns the number of pages for the current filter, at least 1.
func (v *TableView) TotalPages() int {
	pages := (len(v.visible) + v.pageSize - 1) / v.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// TotalRows returns the number of rows matching the current filter.
func (v *TableView) TotalRows() int { return len(v.visible) }

// Rows returns the rows of the current page.
func (v *TableView) Rows() []Row {
	start := (v.page - 1) * v.pageSize
	if start >= len(v.visible) {
		return nil
	}
	end := start + v.pageSize
	if end > len(v.visible) {
		end = len(v.visible)
	}
	return v.visible[start:end]
}

// rebuild re-derives the visible projection from the full set.
func (v *TableView) rebuild() {
	visible := make([]Row, 0, len(v.all))
	for _, row := range v.all {
		if v.modelFilter != "" &&
			!strings.Contains(strings.ToLower(row.Model), strings.ToLower(v.modelFilter)) {
			continue
		}
		if v.quantFilter != "" && !strings.EqualFold(row.Quantization, v.quantFilter) {
			continue
		}
		visible = append(visible, row)
	}
	if v.sortColumn != "" {
		sortRows(visible, v.sortColumn, v.descending)
	}
	v.visible = visible
	v.page = clampPage(v.page, v.TotalPages())
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
