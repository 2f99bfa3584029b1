package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/database"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

func complaintAt(day time.Time, borough, category string) complaint.Complaint {
	ts := day.Add(20 * time.Hour)
	wd := ts.Weekday()
	return complaint.Complaint{
		CreatedAt: ts,
		Date:      day,
		Year:      day.Year(),
		Month:     day.Month(),
		Day:       day.Day(),
		Hour:      20,
		Weekday:   wd.String(),
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
		Borough:   borough,
		Category:  category,
		Latitude:  40.71,
		Longitude: -73.95,
		Phase:     phase.Default().Classify(ts),
	}
}

// fixture spreads complaints over 2019 and 2020 for two boroughs.
func fixture() []complaint.Complaint {
	var out []complaint.Complaint
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d <= 730; d += 3 {
		day := start.AddDate(0, 0, d)
		n := 2 + d%5
		if day.Weekday() == time.Saturday {
			n += 3
		}
		for i := 0; i < n; i++ {
			out = append(out, complaintAt(day, complaint.Brooklyn, "Residential"))
		}
		if d%2 == 0 {
			out = append(out, complaintAt(day, complaint.Queens, "Street/Sidewalk"))
		}
		if day.Year() == 2020 && d%9 == 0 {
			out = append(out, complaintAt(day, complaint.Queens, "Helicopter"))
		}
	}
	return out
}

func testAnalysis(t *testing.T) *aggregate.Analysis {
	t.Helper()
	a, err := aggregate.Analyze(fixture(), aggregate.DefaultOptions())
	require.NoError(t, err)
	return a
}

func testMeta() Meta {
	return Meta{
		RunID:       "3f1b2c9e-0000-4000-8000-000000000001",
		GeneratedAt: time.Date(2026, 2, 6, 9, 30, 0, 0, time.UTC),
		Ranges: []RangeStatus{
			{Range: fetch.Year(2019), Records: 900, Truncated: true},
			{Range: fetch.Year(2020), Err: errors.New("HTTP 503: Service Unavailable")},
		},
		Clean: complaint.Stats{Input: 1000, Kept: 900, BadTimestamp: 40, OutOfBounds: 60},
	}
}

func TestPct(t *testing.T) {
	assert.Equal(t, "n/a", Pct(nil))
	v := 12.345
	assert.Equal(t, "+12.3%", Pct(&v))
	w := -50.0
	assert.Equal(t, "-50.0%", Pct(&w))
}

func TestStoryActs(t *testing.T) {
	story := Story(testAnalysis(t), testMeta())

	for _, want := range []string{
		"# " + Title,
		"## Act I: The Pre-Pandemic City",
		"## Act II: The Great Quieting",
		"## Act III: The Noise Awakening",
		"## Milestones",
		"3f1b2c9e-0000-4000-8000-000000000001",
		"**Warning:** the 2019 range hit the row limit",
		"failed: HTTP 503",
		"900 complaints kept out of 1000 fetched",
		"| 2019 | Jan 01 - Dec 31, 2019 | 900 |",
		"2020-03-22",
	} {
		assert.Contains(t, story, want)
	}
	assert.Less(t, strings.Index(story, "Act I"), strings.Index(story, "Act II"))
	assert.Less(t, strings.Index(story, "Act II"), strings.Index(story, "Act III"))
	assert.Contains(t, story, "n/a", "boroughs without data render undefined changes")
}

func TestStoryEscapesTableCells(t *testing.T) {
	records := fixture()
	for i := range records {
		if records[i].Category == "Helicopter" {
			records[i].Category = "Air|Helicopter"
		}
	}
	a, err := aggregate.Analyze(records, aggregate.DefaultOptions())
	require.NoError(t, err)

	story := Story(a, testMeta())
	assert.Contains(t, story, `Air\|Helicopter`)
	assert.NotContains(t, story, "| Air|Helicopter")

	html, err := RenderHTML(story, testMeta())
	require.NoError(t, err)
	assert.Contains(t, string(html), "Air|Helicopter")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("## Hello\n\n| a | b |\n|---|---|\n| <x> | 2 |\n", testMeta())
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "<h2>Hello</h2>")
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<title>"+Title+"</title>")
	assert.Contains(t, s, `content="3f1b2c9e-0000-4000-8000-000000000001"`)
	assert.NotContains(t, s, "<x>")
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, testAnalysis(t), testMeta())

	out := buf.String()
	assert.Contains(t, out, "Pre-COVID")
	assert.Contains(t, out, "Lockdown")
	assert.Contains(t, out, "Reopening")
	assert.Contains(t, out, "TRUNCATED")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Jan 01 - Dec 31, 2020")
	assert.Contains(t, out, complaint.Brooklyn)
}

func TestPrintRun(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, []string{FormatSQLite}, nil)
	require.NoError(t, err)
	_, err = e.Export(testAnalysis(t), testMeta())
	require.NoError(t, err)

	db, err := database.Open(filepath.Join(dir, ResultsFile), nil)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	tables, err := db.GetTables(run.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintRun(&buf, run, tables)

	out := buf.String()
	assert.Contains(t, out, testMeta().RunID)
	assert.Contains(t, out, "2019-01-01..2019-12-31  900 records (TRUNCATED)")
	assert.Contains(t, out, "FAILED: HTTP 503")
	assert.Contains(t, out, "out_of_bounds")
	assert.Contains(t, out, "phase_summary")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testAnalysis(t).PhaseTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "phase,count,days,daily_average,change_pct", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "PreCovid,"))
}

func TestNewExporterRejectsUnknownFormat(t *testing.T) {
	_, err := NewExporter(t.TempDir(), []string{"csv", "pdf"}, nil)
	assert.Error(t, err)
}

func TestExportAllFormats(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	a := testAnalysis(t)
	meta := testMeta()
	written, err := e.Export(a, meta)
	require.NoError(t, err)

	for _, name := range []string{WorkbookFile, ResultsFile, HeatFile, StoryFile, PageFile} {
		assert.Contains(t, written, filepath.Join(dir, name))
		assert.FileExists(t, filepath.Join(dir, name))
	}
	for _, tbl := range a.Tables() {
		assert.FileExists(t, filepath.Join(dir, TablesDir, tbl.Name+".csv"))
	}

	t.Run("csv leaves undefined cells empty", func(t *testing.T) {
		f, err := os.Open(filepath.Join(dir, TablesDir, "daily_counts.csv"))
		require.NoError(t, err)
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"date", "count", "rolling_mean"}, rows[0])
		assert.Equal(t, "", rows[1][2])
		assert.NotEqual(t, "", rows[4][2])
		for _, r := range rows {
			assert.NotContains(t, r, "NaN")
		}
	})

	t.Run("workbook has one sheet per table", func(t *testing.T) {
		f, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
		require.NoError(t, err)
		defer f.Close()

		sheets := f.GetSheetList()
		assert.Len(t, sheets, len(a.Tables()))
		assert.NotContains(t, sheets, "Sheet1")

		rows, err := f.GetRows("phase_summary")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"phase", "count", "days", "daily_average", "change_pct"}, rows[0])
		assert.Equal(t, "PreCovid", rows[1][0])
		assert.Equal(t, "365", rows[1][2])
	})

	t.Run("results database holds the run", func(t *testing.T) {
		db, err := database.Open(filepath.Join(dir, ResultsFile), nil)
		require.NoError(t, err)
		defer db.Close()

		run, err := db.GetRun(meta.RunID)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, 900, run.Kept)
		require.Len(t, run.Ranges, 2)
		assert.True(t, run.Ranges[0].Truncated)
		require.NotNil(t, run.Ranges[1].Err)

		tables, err := db.GetTables(meta.RunID)
		require.NoError(t, err)
		assert.Len(t, tables, len(a.Tables()))

		assert.Equal(t, 3, rowCount(t, tables, "phase_summary"))
	})

	t.Run("heat frames decode", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, HeatFile))
		require.NoError(t, err)

		var got struct {
			RunID      string `json:"run_id"`
			Milestones []struct {
				Date  string `json:"date"`
				Label string `json:"label"`
			} `json:"milestones"`
			Frames []aggregate.HeatFrame `json:"frames"`
		}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, meta.RunID, got.RunID)
		assert.Len(t, got.Frames, 24)
		assert.Equal(t, "2019-01", got.Frames[0].Month)
		assert.Equal(t, "2020-03-22", got.Milestones[0].Date)
	})
}

func TestExportRerunReplacesResults(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, []string{FormatSQLite}, nil)
	require.NoError(t, err)

	a := testAnalysis(t)
	first := testMeta()
	_, err = e.Export(a, first)
	require.NoError(t, err)

	second := testMeta()
	second.RunID = "second"
	written, err := e.Export(a, second)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ResultsFile)}, written)

	db, err := database.Open(filepath.Join(dir, ResultsFile), nil)
	require.NoError(t, err)
	defer db.Close()

	old, err := db.GetRun(first.RunID)
	require.NoError(t, err)
	assert.Nil(t, old)

	tables, err := db.GetTables(second.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, rowCount(t, tables, "phase_summary"))

	latest, err := db.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.RunID, latest.ID)
}

func rowCount(t *testing.T, tables []database.TableInfo, name string) int {
	t.Helper()
	for _, tbl := range tables {
		if tbl.Name == name {
			return tbl.RowCount
		}
	}
	t.Fatalf("table %s not stored", name)
	return 0
}
