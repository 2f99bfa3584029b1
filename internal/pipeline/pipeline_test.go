package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/config"
	"github.com/TobiSchelling/NoiseStory/internal/database"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
	"github.com/TobiSchelling/NoiseStory/internal/report"
)

const header = `"created_date","complaint_type","descriptor","incident_address","borough","latitude","longitude","status"` + "\n"

// yearCSV returns complaints every fourth day of year for two boroughs,
// plus one row outside the city.
func yearCSV(year int) string {
	var b strings.Builder
	b.WriteString(header)
	start := time.Date(year, 1, 1, 21, 30, 0, 0, time.UTC)
	for d := 0; d < 365; d += 4 {
		ts := start.AddDate(0, 0, d).Format("2006-01-02T15:04:05.000")
		n := 1 + d%3
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%q,%q,%q,,%q,%q,%q,%q\n", ts, "Noise - Residential", "Loud Music/Party", "BROOKLYN", "40.6501", "-73.9496", "Closed")
		}
		fmt.Fprintf(&b, "%q,%q,%q,,%q,%q,%q,%q\n", ts, "Noise - Street/Sidewalk", "Loud Talking", "QUEENS", "40.7282", "-73.7949", "Closed")
	}
	fmt.Fprintf(&b, "%q,%q,%q,,%q,%q,%q,%q\n", start.Format("2006-01-02T15:04:05.000"), "Noise - Vehicle", "Engine Idling", "BRONX", "41.5", "-73.9", "Closed")
	return b.String()
}

func newServer(t *testing.T, fail map[int]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		where := r.URL.Query().Get("$where")
		for _, y := range []int{2019, 2020} {
			if !strings.Contains(where, fmt.Sprintf("'%d-01-01T00:00:00'", y)) {
				continue
			}
			if fail[y] {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(yearCSV(y)))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL, outDir string) *config.Config {
	cfg := config.Default()
	cfg.Source.BaseURL = baseURL
	cfg.Source.AppTokenEnv = ""
	cfg.Output.Dir = outDir
	return cfg
}

func stepNames(r *Result) []string {
	var names []string
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRunEndToEnd(t *testing.T) {
	srv := newServer(t, nil)
	dir := t.TempDir()

	p, err := New(testConfig(srv.URL, dir), zaptest.NewLogger(t))
	require.NoError(t, err)
	var console bytes.Buffer
	p.SetOutput(&console)

	r := p.Run(context.Background(), Options{})

	assert.Equal(t, []string{"Fetch", "Clean", "Classify", "Aggregate", "Export"}, stepNames(r))
	for _, s := range r.Steps {
		assert.NoError(t, s.Err, s.Name)
	}
	assert.NotContains(t, r.Steps[0].Summary, "failed")
	assert.Contains(t, r.Steps[1].Summary, "(2 dropped)")
	require.NotNil(t, r.Analysis)

	total := 0
	for _, ph := range phase.All {
		total += r.Analysis.PhaseCounts[ph]
	}
	assert.Equal(t, r.Analysis.Total, total)

	for _, name := range []string{report.WorkbookFile, report.ResultsFile, report.HeatFile, report.StoryFile, report.PageFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Contains(t, console.String(), r.RunID)

	db, err := database.Open(filepath.Join(dir, report.ResultsFile), nil)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.GetRun(r.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, r.Analysis.Total, run.Kept)
	assert.Equal(t, 2, run.Dropped)
	assert.Equal(t, "2020-03-22", run.LockdownStart)
}

func TestRunSurvivesFailedRange(t *testing.T) {
	srv := newServer(t, map[int]bool{2020: true})
	dir := t.TempDir()

	cfg := testConfig(srv.URL, dir)
	cfg.Output.Formats = []string{report.FormatMarkdown}
	p, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	p.SetOutput(&bytes.Buffer{})

	r := p.Run(context.Background(), Options{})

	require.Len(t, r.Steps, 5)
	assert.Contains(t, r.Steps[0].Summary, "failed: 2020")
	require.NotNil(t, r.Analysis)
	assert.Zero(t, r.Analysis.PhaseCounts[phase.Lockdown])

	story, err := os.ReadFile(filepath.Join(dir, report.StoryFile))
	require.NoError(t, err)
	assert.Contains(t, string(story), "failed: HTTP 503")
	assert.NoFileExists(t, filepath.Join(dir, report.ResultsFile))
}

func TestRunOverrides(t *testing.T) {
	srv := newServer(t, nil)
	dir := t.TempDir()

	cfg := testConfig(srv.URL, filepath.Join(dir, "unused"))
	cfg.Output.Formats = []string{report.FormatMarkdown}
	p, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	p.SetOutput(&bytes.Buffer{})

	out := filepath.Join(dir, "override")
	r := p.Run(context.Background(), Options{Limit: 1000000, OutputDir: out})
	assert.NotContains(t, r.Steps[0].Summary, "truncated")
	assert.FileExists(t, filepath.Join(out, report.StoryFile))
	assert.NoDirExists(t, filepath.Join(dir, "unused"))
}

func TestRunOnlyRequestedRanges(t *testing.T) {
	srv := newServer(t, map[int]bool{2020: true})
	dir := t.TempDir()

	cfg := testConfig(srv.URL, dir)
	cfg.Output.Formats = []string{report.FormatMarkdown}
	p, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	p.SetOutput(&bytes.Buffer{})

	r := p.Run(context.Background(), Options{Ranges: []fetch.Range{fetch.Year(2019)}})
	assert.Equal(t, "Fetched 276 records from 1 ranges", r.Steps[0].Summary)
}

func TestCountByBoroughAndPhase(t *testing.T) {
	srv := newServer(t, nil)
	p, err := New(testConfig(srv.URL, t.TempDir()), zaptest.NewLogger(t))
	require.NoError(t, err)

	df, step := p.Count(context.Background(), Options{}, []aggregate.Dimension{aggregate.DimBorough, aggregate.DimPhase})

	assert.Equal(t, "Fetch", step.Name)
	assert.Equal(t, []string{"borough", "phase", "count"}, df.Names())
	counts := map[string]int{}
	total := 0
	boroughs, phases, n := df.Col("borough"), df.Col("phase"), df.Col("count")
	for i := 0; i < df.Nrow(); i++ {
		v, err := n.Elem(i).Int()
		require.NoError(t, err)
		counts[boroughs.Elem(i).String()+"/"+phases.Elem(i).String()] = v
		total += v
	}
	// 92 days in 2019 plus 21 in 2020 before the lockdown.
	assert.Equal(t, 113, counts["Queens/PreCovid"])
	assert.NotContains(t, counts, "Bronx/PreCovid")
	assert.Equal(t, 2*275, total)
}

func TestDryRunListsRequests(t *testing.T) {
	cfg := testConfig("https://example.test", t.TempDir())
	p, err := New(cfg, nil)
	require.NoError(t, err)

	r := p.DryRun(Options{Limit: 50})

	assert.Equal(t, []string{"Fetch", "Classify", "Export"}, stepNames(r))
	assert.Contains(t, r.Steps[0].Summary, "https://example.test/resource/erm2-nwe9.csv?")
	assert.Contains(t, r.Steps[0].Summary, "%24limit=50")
	assert.Contains(t, r.Steps[0].Summary, "2019: GET")
	assert.Contains(t, r.Steps[0].Summary, "2020: GET")
	assert.Contains(t, r.Steps[1].Summary, "2020-03-22")
	assert.Empty(t, r.RunID)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.RollingWindow = 6
	_, err := New(cfg, nil)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Ranges = []config.Range{{Start: "2020-12-31", End: "2020-01-01"}}
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
