package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/attendbench/pkg/records"
	"github.com/HatiCode/attendbench/pkg/samples"
)

func init() {
	color.NoColor = true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSamples(t *testing.T, path string, notes map[string][]float64) {
	t.Helper()
	w, err := samples.OpenLog(path)
	require.NoError(t, err)
	defer w.Close()

	start := civil.Date{Year: 2024, Month: time.May, Day: 2}
	for note, values := range notes {
		for i, v := range values {
			require.NoError(t, w.Append(samples.Sample{
				Timestamp: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local),
				Mode:      samples.ModeInitial,
				UserID:    100,
				Start:     start,
				End:       start.AddDays(30),
				Iteration: i + 1,
				ElapsedMS: v,
				Note:      note,
			}))
		}
	}
}

func TestSizeLabel(t *testing.T) {
	tests := []struct {
		rows int
		want string
	}{
		{1000, "1k"},
		{100000, "100k"},
		{1000000, "1m"},
		{2500, "2500"},
		{999, "999"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeLabel(tt.rows), "sizeLabel(%d)", tt.rows)
	}
}

func TestRunAnalyze(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "results.csv")
	writeSamples(t, logPath, map[string][]float64{
		"C0_1k":  {100, 120, 110},
		"C1_1k":  {50, 60, 40},
		"C2_10k": {5},
		"C1-1k":  {70},
	})

	var out bytes.Buffer
	err := runAnalyze(analyzeOptions{log: logPath, baseline: "C0", outDir: dir, pivot: true}, &out, discardLogger())
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "+54.55%")
	assert.Contains(t, got, "MalformedNote")
	assert.Contains(t, got, "BaselineMissing")
	assert.Contains(t, got, "Pivot")

	summary, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "size,condition,mode,avg_ms"))
	assert.Contains(t, string(summary), "1k,C0,initial,110.000,8.165,110.000,3")

	comparison, err := os.ReadFile(filepath.Join(dir, "comparison.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(comparison), "1k,C1,initial,50.000,8.165,50.000,3,110.000,54.55")
	assert.NotContains(t, string(comparison), "10k")
}

func TestRunAnalyze_EmptyLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	err := runAnalyze(analyzeOptions{log: logPath, baseline: "C0"}, io.Discard, discardLogger())
	assert.Error(t, err)
}

func TestRunAnalyze_MissingLog(t *testing.T) {
	err := runAnalyze(analyzeOptions{log: filepath.Join(t.TempDir(), "nope.csv")}, io.Discard, discardLogger())
	assert.Error(t, err)
}

func TestFlagSpec(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.June, Day: 1}
	base := sampleOptions{user: 100, days: 30, n: 30, mode: "initial", note: "C3_100k"}

	spec, err := flagSpec(base, today)
	require.NoError(t, err)
	assert.Equal(t, "C3", spec.Condition)
	assert.Equal(t, "100k", spec.Size)
	assert.Equal(t, today, spec.End)
	assert.Equal(t, today.AddDays(-30), spec.Start)

	bad := []func(*sampleOptions){
		func(o *sampleOptions) { o.note = "C3100k" },
		func(o *sampleOptions) { o.note = "C3_100_k" },
		func(o *sampleOptions) { o.mode = "warm" },
		func(o *sampleOptions) { o.start = "June" },
		func(o *sampleOptions) { o.n = 0 },
		func(o *sampleOptions) { o.start, o.end = "2024-05-10", "2024-05-01" },
	}
	for i, mutate := range bad {
		opts := base
		mutate(&opts)
		_, err := flagSpec(opts, today)
		assert.Error(t, err, "case %d", i)
	}
}

func TestRunSample(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := "db"
		if hits.Add(1) > 1 {
			source = "cache"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"source":"` + source + `","rows":[{"user_id":100,"date":"2024-05-03","status":"PRESENT"}]}`))
	}))
	defer srv.Close()

	csvPath := filepath.Join(t.TempDir(), "results.csv")
	opts := sampleOptions{
		base:    srv.URL,
		user:    100,
		days:    30,
		n:       4,
		mode:    "repeat",
		csv:     csvPath,
		note:    "C2_1k",
		timeout: 5 * time.Second,
		quiet:   true,
	}

	var out bytes.Buffer
	require.NoError(t, runSample(context.Background(), opts, &out, discardLogger()))

	assert.Equal(t, int32(5), hits.Load(), "one warm-up plus four timed requests")
	assert.Contains(t, out.String(), "[C2_1k repeat] n=4")
	assert.Contains(t, out.String(), "failed=0")

	got, rowErrs, err := samples.ReadLog(csvPath)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, got, 4)
	for _, s := range got {
		assert.Equal(t, "C2_1k", s.Note)
		assert.Equal(t, samples.ModeRepeat, s.Mode)
	}
}

func TestRunSample_Plan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"source":"db","rows":[]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	plan := "runs:\n" +
		"  - target: " + srv.URL + "\n    condition: C0\n    size: 1k\n    n: 2\n" +
		"  - target: " + srv.URL + "\n    condition: C1\n    size: 1k\n    n: 3\n"
	require.NoError(t, os.WriteFile(planPath, []byte(plan), 0o644))

	csvPath := filepath.Join(dir, "results.csv")
	opts := sampleOptions{plan: planPath, csv: csvPath, timeout: 5 * time.Second, quiet: true}

	var out bytes.Buffer
	require.NoError(t, runSample(context.Background(), opts, &out, discardLogger()))

	got, _, err := samples.ReadLog(csvPath)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Contains(t, out.String(), "[C0_1k initial] n=2")
	assert.Contains(t, out.String(), "[C1_1k initial] n=3")
}

func TestRunSample_ServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	csvPath := filepath.Join(t.TempDir(), "results.csv")
	opts := sampleOptions{base: url, user: 1, days: 30, n: 3, mode: "initial", csv: csvPath, note: "C0_1k", timeout: time.Second, quiet: true}

	var out bytes.Buffer
	require.NoError(t, runSample(context.Background(), opts, &out, discardLogger()))
	assert.Contains(t, out.String(), "failed=3")
}

func TestSeedCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "db.sqlite3")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"seed", "--rows", "500", "--users", "10", "--out", out, "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), "wrote 500 rows")

	store, err := records.Open(out, time.Second, discardLogger())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
}
