package analysis

import (
	"slices"
	"strings"

	"github.com/HatiCode/attendbench/pkg/samples"
)

// PivotRow is one (size, mode) line of the pivot table, with one column per
// condition.
type PivotRow struct {
	Size       string
	Mode       samples.Mode
	AvgMS      map[string]float64
	ImprovePct map[string]float64
}

// Pivot is the comparison table reshaped so conditions become columns.
type Pivot struct {
	// Conditions lists the column order: the baseline first, then the rest
	// sorted lexically.
	Conditions []string
	Rows       []PivotRow
}

// PivotComparison reshapes c into a Pivot.
func PivotComparison(c Comparison) Pivot {
	type sizeMode struct {
		size string
		mode samples.Mode
	}

	index := make(map[sizeMode]int)
	seen := make(map[string]bool)
	var p Pivot

	for _, r := range c.Rows {
		k := sizeMode{r.Size, r.Mode}
		i, ok := index[k]
		if !ok {
			i = len(p.Rows)
			index[k] = i
			p.Rows = append(p.Rows, PivotRow{
				Size:       r.Size,
				Mode:       r.Mode,
				AvgMS:      make(map[string]float64),
				ImprovePct: make(map[string]float64),
			})
		}
		p.Rows[i].AvgMS[r.Condition] = r.AvgMS
		p.Rows[i].ImprovePct[r.Condition] = r.ImprovePct
		seen[r.Condition] = true
	}

	for cond := range seen {
		p.Conditions = append(p.Conditions, cond)
	}
	slices.SortFunc(p.Conditions, func(a, b string) int {
		switch {
		case a == c.Baseline:
			return -1
		case b == c.Baseline:
			return 1
		}
		return strings.Compare(a, b)
	})

	slices.SortStableFunc(p.Rows, func(a, b PivotRow) int {
		if c := CompareSize(a.Size, b.Size); c != 0 {
			return c
		}
		return strings.Compare(string(a.Mode), string(b.Mode))
	})

	return p
}
