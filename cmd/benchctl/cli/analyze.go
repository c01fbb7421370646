package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HatiCode/attendbench/pkg/analysis"
	"github.com/HatiCode/attendbench/pkg/samples"
)

type analyzeOptions struct {
	log      string
	baseline string
	outDir   string
	pivot    bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"report"},
	Short:   "Summarize the sample log and compare conditions against a baseline",
	Long: `Reads the whole sample log, groups samples by (size, condition, mode) and
prints mean, population standard deviation, median and count per group.
Each group is then compared with the baseline condition of the same size
and mode: improve_pct = (base - avg) / base * 100.

Malformed notes and groups without a baseline are reported as warnings; the
remaining groups are still summarized. summary.csv and comparison.csv are
written to --out-dir for plotting.`,
	Example: `  # Compare everything against the plain configuration
  benchctl analyze --log results.csv

  # Use the index-only condition as baseline and show the pivot table
  benchctl analyze --baseline C1 --pivot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(analyzeOpts, cmd.OutOrStdout(), newLogger())
	},
}

func runAnalyze(opts analyzeOptions, out io.Writer, logger *slog.Logger) error {
	ss, rowErrs, err := samples.ReadLog(opts.log)
	if err != nil {
		return err
	}
	for _, re := range rowErrs {
		logger.Warn("skipping unreadable sample row", "line", re.Line, "error", re.Err)
	}
	if len(ss) == 0 {
		return fmt.Errorf("no samples in %s", opts.log)
	}

	summary := analysis.Summarize(ss)
	comparison := analysis.Compare(summary.Rows, opts.baseline)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	headerColor.Fprintf(w, "--- Summary (%d samples) ---\n", len(ss))
	fmt.Fprintln(w, "SIZE\tCONDITION\tMODE\tAVG_MS\tSTD_MS\tMEDIAN_MS\tN")
	for _, r := range summary.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.3f\t%.3f\t%d\n", r.Size, r.Condition, r.Mode, r.AvgMS, r.StdMS, r.MedianMS, r.N)
	}
	w.Flush()

	headerColor.Fprintf(w, "\n--- Comparison (baseline %s) ---\n", comparison.Baseline)
	fmt.Fprintln(w, "SIZE\tCONDITION\tMODE\tAVG_MS\tBASE_MS\tIMPROVE_PCT")
	for _, r := range comparison.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.3f\t%s\n", r.Size, r.Condition, r.Mode, r.AvgMS, r.BaseMS, improvement(r.ImprovePct))
	}
	w.Flush()

	if opts.pivot {
		printPivot(w, analysis.PivotComparison(comparison))
		w.Flush()
	}

	warnings := append(summary.Warnings, comparison.Warnings()...)
	if len(warnings) > 0 || len(rowErrs) > 0 {
		headerColor.Fprintln(out, "\n--- Warnings ---")
		if len(rowErrs) > 0 {
			warnColor.Fprintf(out, "%d unreadable rows skipped\n", len(rowErrs))
		}
		for _, warn := range warnings {
			warnColor.Fprintln(out, warn.String())
		}
	}

	if opts.outDir == "" {
		return nil
	}
	if err := writeReports(opts.outDir, summary.Rows, comparison.Rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nwrote %s and %s\n",
		filepath.Join(opts.outDir, "summary.csv"), filepath.Join(opts.outDir, "comparison.csv"))
	return nil
}

func printPivot(w io.Writer, p analysis.Pivot) {
	headerColor.Fprintln(w, "\n--- Pivot (avg_ms / improve_pct) ---")
	fmt.Fprint(w, "SIZE\tMODE")
	for _, c := range p.Conditions {
		fmt.Fprintf(w, "\t%s", c)
	}
	fmt.Fprintln(w)

	for _, r := range p.Rows {
		fmt.Fprintf(w, "%s\t%s", r.Size, r.Mode)
		for _, c := range p.Conditions {
			avg, ok := r.AvgMS[c]
			if !ok {
				fmt.Fprint(w, "\t-")
				continue
			}
			fmt.Fprintf(w, "\t%.3f (%+.1f%%)", avg, r.ImprovePct[c])
		}
		fmt.Fprintln(w)
	}
}

// improvement colors faster results green and slower ones red.
func improvement(pct float64) string {
	s := fmt.Sprintf("%+.2f%%", pct)
	switch {
	case pct > 0:
		return goodColor.Sprint(s)
	case pct < 0:
		return badColor.Sprint(s)
	default:
		return s
	}
}

func writeReports(dir string, summary []analysis.SummaryRow, comparison []analysis.ComparisonRow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	write := func(name string, fn func(io.Writer) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		return f.Close()
	}

	if err := write("summary.csv", func(w io.Writer) error { return analysis.WriteSummaryCSV(w, summary) }); err != nil {
		return err
	}
	return write("comparison.csv", func(w io.Writer) error { return analysis.WriteComparisonCSV(w, comparison) })
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeOpts.log, "log", "results.csv", "Sample log to read")
	analyzeCmd.Flags().StringVar(&analyzeOpts.baseline, "baseline", analysis.DefaultBaseline, "Baseline condition")
	analyzeCmd.Flags().StringVar(&analyzeOpts.outDir, "out-dir", ".", "Directory for summary.csv and comparison.csv (empty to skip)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.pivot, "pivot", false, "Also print conditions side by side")
}
