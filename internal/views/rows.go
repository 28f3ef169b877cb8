// internal/views/rows.go
// Package views builds page-ready projections of the run index: the paginated
// table, the model comparison matrix, and chart series. Projections never
// mutate the underlying index entries, and all view state is explicit,
// owned by the view value it belongs to.
package views

import (
	"sort"
	"strings"

	"github.com/sndlab/sndbench/internal/aggregate"
	"github.com/sndlab/sndbench/internal/modelinfo"
)

// Column identifies a sortable column.
type Column string

const (
	ColumnTimestamp    Column = "timestamp"
	ColumnAccuracy     Column = "accuracy"
	ColumnQuantization Column = "quantization"
	ColumnSize         Column = "size"
	ColumnModel        Column = "model"
)

// Row is an index entry enriched with the derived display fields.
type Row struct {
	aggregate.IndexEntry
	ShortName    string
	Quantization string
	ParamSizeB   float64
}

// BuildRows derives display rows from index entries, preserving order.
func BuildRows(entries []aggregate.IndexEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, Row{
			IndexEntry:   entry,
			ShortName:    modelinfo.ShortName(entry.Model),
			Quantization: modelinfo.Quantization(entry.Model),
			ParamSizeB:   modelinfo.ParamSizeB(entry.Model),
		})
	}
	return rows
}

// sortRows orders rows by the given column with a stable tie-break on model
// name ascending.
func sortRows(rows []Row, column Column, descending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		cmp := compareRows(rows[i], rows[j], column)
		if cmp == 0 {
			return rows[i].Model < rows[j].Model
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareRows(a, b Row, column Column) int {
	switch column {
	case ColumnAccuracy:
		return compareFloat(a.AverageAccuracy, b.AverageAccuracy)
	case ColumnQuantization:
		return strings.Compare(a.Quantization, b.Quantization)
	case ColumnSize:
		return compareFloat(a.ParamSizeB, b.ParamSizeB)
	case ColumnModel:
		return strings.Compare(a.Model, b.Model)
	default:
		return strings.Compare(a.Timestamp, b.Timestamp)
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
