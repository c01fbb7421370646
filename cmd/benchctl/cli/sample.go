package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/HatiCode/attendbench/pkg/httpx"
	"github.com/HatiCode/attendbench/pkg/sampler"
	"github.com/HatiCode/attendbench/pkg/samples"
	"github.com/HatiCode/attendbench/pkg/tls"
)

type sampleOptions struct {
	base    string
	user    int64
	days    int
	start   string
	end     string
	n       int
	mode    string
	csv     string
	note    string
	rate    float64
	plan    string
	timeout time.Duration
	quiet   bool
	tls     tls.Config
}

var sampleOpts sampleOptions

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Measure attendance query latency against a running service",
	Long: `Sends N sequential attendance queries to attendsvc and appends one CSV
row per successful request to the sample log. In repeat mode a single
untimed warm-up request is sent first so the cache, if enabled, is populated.

The --note label is "<condition>_<size>", for example C0_1k (no index, no
cache, 1k rows) or C3_100k. Several runs can be listed in a YAML --plan file
instead of flags; each run names its own target.`,
	Example: `  # 30 cold requests against the default service
  benchctl sample --note C0_1k

  # Warm cache measurements against an indexed+cached service
  benchctl sample --base http://127.0.0.1:5003 --note C3_100k --mode repeat --n 50

  # Execute every run of a plan file
  benchctl sample --plan bench.yaml --csv results.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSample(ctx, sampleOpts, cmd.OutOrStdout(), newLogger())
	},
}

// runSample executes either the plan file or the single run described by
// flags, printing a one-line result per run.
func runSample(ctx context.Context, opts sampleOptions, out io.Writer, logger *slog.Logger) error {
	client, err := httpx.NewClient(opts.tls, opts.timeout)
	if err != nil {
		return err
	}

	type job struct {
		target string
		spec   sampler.RunSpec
	}
	var jobs []job
	today := civil.DateOf(time.Now())

	if opts.plan != "" {
		plan, err := sampler.LoadPlan(opts.plan)
		if err != nil {
			return err
		}
		for _, run := range plan.Runs {
			spec, err := run.Spec(today)
			if err != nil {
				return err
			}
			jobs = append(jobs, job{target: run.Target, spec: spec})
		}
	} else {
		spec, err := flagSpec(opts, today)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{target: opts.base, spec: spec})
	}

	log, err := samples.OpenLog(opts.csv)
	if err != nil {
		return err
	}
	defer func() {
		if err := log.Close(); err != nil {
			logger.Error("failed to close sample log", "error", err)
		}
	}()

	for _, j := range jobs {
		note, _ := j.spec.Note()
		runOpts := []sampler.Option{sampler.WithRateLimit(opts.rate)}
		var bar *progressbar.ProgressBar
		if !opts.quiet {
			bar = progressbar.Default(int64(j.spec.N), fmt.Sprintf("%s %s", note, j.spec.Mode))
			runOpts = append(runOpts, sampler.WithProgress(func() { bar.Add(1) }))
		}

		runner := sampler.New(log, logger, runOpts...)
		report, err := runner.Run(ctx, j.spec, sampler.NewHTTPTarget(j.target, client))
		if bar != nil {
			bar.Finish()
		}
		printReport(out, report)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				warnColor.Fprintln(out, "interrupted; samples taken so far are in", log.Path())
			}
			return err
		}
	}
	return nil
}

// flagSpec builds the single run described by command-line flags.
func flagSpec(opts sampleOptions, today civil.Date) (sampler.RunSpec, error) {
	note, err := samples.ParseNote(opts.note)
	if err != nil {
		return sampler.RunSpec{}, err
	}
	mode, err := samples.ParseMode(opts.mode)
	if err != nil {
		return sampler.RunSpec{}, err
	}
	start, end, err := sampler.ResolveWindow(opts.start, opts.end, opts.days, today)
	if err != nil {
		return sampler.RunSpec{}, err
	}

	spec := sampler.RunSpec{
		Condition: note.Condition,
		Size:      note.Size,
		Mode:      mode,
		UserID:    opts.user,
		Start:     start,
		End:       end,
		N:         opts.n,
	}
	return spec, spec.Validate()
}

func printReport(w io.Writer, r sampler.Report) {
	note, _ := r.Spec.Note()
	labelColor.Fprintf(w, "[%s %s]", note, r.Spec.Mode)
	fmt.Fprintf(w, " n=%d avg=%.3fms std=%.3fms median=%.3fms", r.Stats.N, r.Stats.Mean, r.Stats.Std, r.Stats.Median)
	if r.Failed > 0 {
		badColor.Fprintf(w, " failed=%d", r.Failed)
	} else {
		fmt.Fprintf(w, " failed=0")
	}
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, " sources=%v", r.Sources)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	f := sampleCmd.Flags()
	f.StringVar(&sampleOpts.base, "base", getEnvOrDefault("ATTENDSVC_URL", "http://127.0.0.1:5000"), "Base URL of attendsvc")
	f.Int64Var(&sampleOpts.user, "user", sampler.DefaultUserID, "User ID to query")
	f.IntVar(&sampleOpts.days, "days", sampler.DefaultDays, "Window width when --start is omitted")
	f.StringVar(&sampleOpts.start, "start", "", "Window start date (YYYY-MM-DD)")
	f.StringVar(&sampleOpts.end, "end", "", "Window end date (YYYY-MM-DD, default today)")
	f.IntVar(&sampleOpts.n, "n", sampler.DefaultN, "Number of timed requests")
	f.StringVar(&sampleOpts.mode, "mode", string(samples.ModeInitial), "Mode: initial or repeat")
	f.StringVar(&sampleOpts.csv, "csv", "results.csv", "Sample log to append to")
	f.StringVar(&sampleOpts.note, "note", "C0_1k", "Run label <condition>_<size>")
	f.Float64Var(&sampleOpts.rate, "rate", 0, "Max requests per second (0 = unlimited)")
	f.StringVar(&sampleOpts.plan, "plan", "", "YAML plan file listing runs (overrides run flags)")
	f.DurationVar(&sampleOpts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	f.BoolVarP(&sampleOpts.quiet, "quiet", "q", false, "Hide the progress bar")

	f.BoolVar(&sampleOpts.tls.Enabled, "tls-enabled", false, "Use TLS to reach the service")
	f.StringVar(&sampleOpts.tls.CAFile, "tls-ca-file", "", "CA certificate for server verification")
	f.StringVar(&sampleOpts.tls.CertFile, "tls-cert-file", "", "Client certificate for mutual TLS")
	f.StringVar(&sampleOpts.tls.KeyFile, "tls-key-file", "", "Client private key for mutual TLS")
}
