// Package analysis turns raw benchmark samples into per-group summary
// statistics and baseline-relative improvement figures.
//
// The pipeline is linear: Summarize groups samples by (size, condition, mode)
// and computes descriptive statistics; Compare joins every summary row to the
// baseline condition's row with the same size and mode. Data-quality problems
// are collected as warnings next to whatever output could still be computed.
package analysis

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/HatiCode/attendbench/pkg/samples"
)

// ErrBaselineMissing marks a group that has no baseline row for its size and mode.
var ErrBaselineMissing = errors.New("baseline missing")

// DefaultBaseline is the condition other conditions are compared against
// unless told otherwise.
const DefaultBaseline = "C0"

// WarningKind classifies a data-quality warning.
type WarningKind string

const (
	KindMalformedNote   WarningKind = "MalformedNote"
	KindBaselineMissing WarningKind = "BaselineMissing"
)

// Warning is a data-quality problem found during aggregation.
type Warning struct {
	Kind WarningKind
	// Subject is the offending note or group.
	Subject string
	// Count is how many samples or rows the warning covers.
	Count int
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%d): %v", w.Kind, w.Subject, w.Count, w.Err)
}

// GroupKey identifies a summary group.
type GroupKey struct {
	Size      string
	Condition string
	Mode      samples.Mode
}

func (k GroupKey) String() string {
	return k.Condition + "_" + k.Size + "/" + string(k.Mode)
}

// SummaryRow holds the statistics of one group.
type SummaryRow struct {
	GroupKey
	AvgMS    float64
	StdMS    float64
	MedianMS float64
	N        int
}

// Summary is the output of Summarize.
type Summary struct {
	Rows     []SummaryRow
	Warnings []Warning
}

// Summarize groups samples by (size, condition, mode) and describes each group.
//
// Samples whose note does not parse are left out of every group and reported
// as one MalformedNote warning per distinct note. Rows are ordered by size,
// condition, then mode.
func Summarize(ss []samples.Sample) Summary {
	groups := make(map[GroupKey][]float64)
	malformed := make(map[string]*Warning)
	var malformedOrder []string

	for _, s := range ss {
		note, err := samples.ParseNote(s.Note)
		if err != nil {
			w, ok := malformed[s.Note]
			if !ok {
				w = &Warning{Kind: KindMalformedNote, Subject: s.Note, Err: err}
				malformed[s.Note] = w
				malformedOrder = append(malformedOrder, s.Note)
			}
			w.Count++
			continue
		}

		key := GroupKey{Size: note.Size, Condition: note.Condition, Mode: s.Mode}
		groups[key] = append(groups[key], s.ElapsedMS)
	}

	rows := make([]SummaryRow, 0, len(groups))
	for key, values := range groups {
		st := Describe(values)
		rows = append(rows, SummaryRow{
			GroupKey: key,
			AvgMS:    st.Mean,
			StdMS:    st.Std,
			MedianMS: st.Median,
			N:        st.N,
		})
	}
	slices.SortFunc(rows, func(a, b SummaryRow) int { return compareKeys(a.GroupKey, b.GroupKey) })

	slices.Sort(malformedOrder)
	warnings := make([]Warning, 0, len(malformedOrder))
	for _, note := range malformedOrder {
		warnings = append(warnings, *malformed[note])
	}

	return Summary{Rows: rows, Warnings: warnings}
}

// ComparisonRow is a summary row joined with its baseline.
type ComparisonRow struct {
	SummaryRow
	BaseMS     float64
	ImprovePct float64
}

// Comparison is the output of Compare.
type Comparison struct {
	Baseline string
	Rows     []ComparisonRow
	// BaselineMissing lists groups left out because no baseline row shares
	// their size and mode, or the baseline mean is zero.
	BaselineMissing []GroupKey
}

// Warnings reports every baseline-missing group as a warning.
func (c Comparison) Warnings() []Warning {
	out := make([]Warning, 0, len(c.BaselineMissing))
	for _, k := range c.BaselineMissing {
		out = append(out, Warning{
			Kind:    KindBaselineMissing,
			Subject: k.String(),
			Count:   1,
			Err:     fmt.Errorf("%w: no %s row for size %s mode %s", ErrBaselineMissing, c.Baseline, k.Size, k.Mode),
		})
	}
	return out
}

// Compare joins each row to the baseline condition's row with the same size
// and mode. The baseline rows themselves are included with a zero improvement.
// Output order follows the input order of rows, which Summarize already sorts.
func Compare(rows []SummaryRow, baseline string) Comparison {
	if baseline == "" {
		baseline = DefaultBaseline
	}

	type sizeMode struct {
		size string
		mode samples.Mode
	}
	bases := make(map[sizeMode]float64)
	for _, r := range rows {
		if r.Condition == baseline {
			bases[sizeMode{r.Size, r.Mode}] = r.AvgMS
		}
	}

	c := Comparison{Baseline: baseline, Rows: make([]ComparisonRow, 0, len(rows))}
	for _, r := range rows {
		base, ok := bases[sizeMode{r.Size, r.Mode}]
		if !ok || base == 0 {
			c.BaselineMissing = append(c.BaselineMissing, r.GroupKey)
			continue
		}
		c.Rows = append(c.Rows, ComparisonRow{
			SummaryRow: r,
			BaseMS:     base,
			ImprovePct: ImprovePct(base, r.AvgMS),
		})
	}
	return c
}

func compareKeys(a, b GroupKey) int {
	if c := CompareSize(a.Size, b.Size); c != 0 {
		return c
	}
	if c := strings.Compare(a.Condition, b.Condition); c != 0 {
		return c
	}
	return strings.Compare(string(a.Mode), string(b.Mode))
}

// CompareSize orders dataset size labels by magnitude ("1k" < "5k" < "10k" <
// "1m"). Labels without a numeric value sort after numeric ones, lexically.
func CompareSize(a, b string) int {
	va, okA := sizeValue(a)
	vb, okB := sizeValue(b)
	switch {
	case okA && okB:
		if c := cmp.Compare(va, vb); c != 0 {
			return c
		}
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

func sizeValue(s string) (float64, bool) {
	mult := 1.0
	num := strings.ToLower(s)
	switch {
	case strings.HasSuffix(num, "k"):
		mult, num = 1e3, num[:len(num)-1]
	case strings.HasSuffix(num, "m"):
		mult, num = 1e6, num[:len(num)-1]
	case strings.HasSuffix(num, "g"):
		mult, num = 1e9, num[:len(num)-1]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}
