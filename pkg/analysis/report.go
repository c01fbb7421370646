package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var (
	summaryHeader    = []string{"size", "condition", "mode", "avg_ms", "std_ms", "median_ms", "n"}
	comparisonHeader = append(append([]string(nil), summaryHeader...), "base_ms", "improve_pct")
)

func formatMS(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func (r SummaryRow) fields() []string {
	return []string{
		r.Size,
		r.Condition,
		string(r.Mode),
		formatMS(r.AvgMS),
		formatMS(r.StdMS),
		formatMS(r.MedianMS),
		strconv.Itoa(r.N),
	}
}

// WriteSummaryCSV writes rows as CSV with a header line.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.fields()); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteComparisonCSV writes rows as CSV with a header line.
func WriteComparisonCSV(w io.Writer, rows []ComparisonRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(comparisonHeader); err != nil {
		return fmt.Errorf("write comparison header: %w", err)
	}
	for _, r := range rows {
		rec := append(r.SummaryRow.fields(), formatMS(r.BaseMS), strconv.FormatFloat(r.ImprovePct, 'f', 2, 64))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write comparison row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
