// Package batch partitions an ordered row sequence into per-document groups.
package batch

import "iter"

// Range is the half-open row interval [Start, End) rendered into document Index.
type Range struct {
	Index int
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// Plan describes how TotalRows rows split into documents of RowsPerDoc rows.
type Plan struct {
	TotalRows  int
	RowsPerDoc int
	Documents  int
}

// NewPlan builds a plan; rowsPerDoc values below 1 are treated as 1.
func NewPlan(totalRows, rowsPerDoc int) Plan {
	if rowsPerDoc < 1 {
		rowsPerDoc = 1
	}
	if totalRows < 0 {
		totalRows = 0
	}
	return Plan{
		TotalRows:  totalRows,
		RowsPerDoc: rowsPerDoc,
		Documents:  (totalRows + rowsPerDoc - 1) / rowsPerDoc,
	}
}

// Range returns the rows of document i. i must be in [0, Documents).
func (p Plan) Range(i int) Range {
	start := i * p.RowsPerDoc
	end := min(start+p.RowsPerDoc, p.TotalRows)
	return Range{Index: i, Start: start, End: end}
}

// All yields every document range in order.
func (p Plan) All() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for i := 0; i < p.Documents; i++ {
			if !yield(p.Range(i)) {
				return
			}
		}
	}
}

// Rows returns the slice of rows belonging to r.
func Rows[T any](rows []T, r Range) []T {
	return rows[r.Start:r.End]
}
