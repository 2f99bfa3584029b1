package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/database"
)

// Output formats understood by the Exporter.
const (
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatSQLite   = "sqlite"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists every output format.
var Formats = []string{FormatCSV, FormatXLSX, FormatSQLite, FormatJSON, FormatMarkdown, FormatHTML}

// Artifact file names inside the output directory.
const (
	TablesDir    = "tables"
	WorkbookFile = "noise_tables.xlsx"
	ResultsFile  = "results.db"
	HeatFile     = "heat_frames.json"
	StoryFile    = "story.md"
	PageFile     = "story.html"
)

// Exporter writes an analysis to disk in the configured formats.
type Exporter struct {
	dir     string
	formats []string
	logger  *zap.Logger
}

// NewExporter validates formats and returns an Exporter writing into dir.
// An empty format list selects every format.
func NewExporter(dir string, formats []string, logger *zap.Logger) (*Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(formats) == 0 {
		formats = Formats
	}
	for _, f := range formats {
		if !slices.Contains(Formats, f) {
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	return &Exporter{dir: dir, formats: formats, logger: logger}, nil
}

func (e *Exporter) enabled(format string) bool {
	return slices.Contains(e.formats, format)
}

// Export writes every enabled artifact and returns the written paths.
func (e *Exporter) Export(a *aggregate.Analysis, meta Meta) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tables := a.Tables()
	var written []string

	if e.enabled(FormatCSV) {
		paths, err := WriteCSV(filepath.Join(e.dir, TablesDir), tables)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}

	if e.enabled(FormatXLSX) {
		path := filepath.Join(e.dir, WorkbookFile)
		if err := WriteWorkbook(path, tables); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if e.enabled(FormatSQLite) {
		path := filepath.Join(e.dir, ResultsFile)
		if err := e.writeResults(path, a, tables, meta); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if e.enabled(FormatJSON) {
		path := filepath.Join(e.dir, HeatFile)
		if err := WriteHeatFrames(path, a, meta); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	story := Story(a, meta)
	if e.enabled(FormatMarkdown) {
		path := filepath.Join(e.dir, StoryFile)
		if err := os.WriteFile(path, []byte(story), 0o644); err != nil {
			return written, fmt.Errorf("writing story: %w", err)
		}
		written = append(written, path)
	}

	if e.enabled(FormatHTML) {
		html, err := RenderHTML(story, meta)
		if err != nil {
			return written, err
		}
		path := filepath.Join(e.dir, PageFile)
		if err := os.WriteFile(path, html, 0o644); err != nil {
			return written, fmt.Errorf("writing html report: %w", err)
		}
		written = append(written, path)
	}

	e.logger.Info("exported artifacts", zap.String("dir", e.dir), zap.Int("files", len(written)))
	return written, nil
}

func (e *Exporter) writeResults(path string, a *aggregate.Analysis, tables []aggregate.Table, meta Meta) error {
	db, err := database.Create(path, e.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	b := a.Options().Boundaries
	run := database.Run{
		ID:             meta.RunID,
		StartedAt:      meta.GeneratedAt,
		Fetched:        meta.Clean.Input,
		Kept:           meta.Clean.Kept,
		Dropped:        meta.Clean.Dropped(),
		LockdownStart:  b.LockdownStart.Format("2006-01-02"),
		ReopeningStart: b.ReopeningStart.Format("2006-01-02"),
		AnalysisEnd:    b.AnalysisEnd.Format("2006-01-02"),
		DropReasons: map[string]int{
			"bad_timestamp":   meta.Clean.BadTimestamp,
			"bad_coordinates": meta.Clean.BadCoordinates,
			"out_of_bounds":   meta.Clean.OutOfBounds,
		},
	}
	for _, r := range meta.Ranges {
		rs := database.RangeStat{
			Label:     r.Range.Label,
			Start:     r.Range.Start.Format("2006-01-02"),
			End:       r.Range.End.Format("2006-01-02"),
			Records:   r.Records,
			Truncated: r.Truncated,
		}
		if r.Err != nil {
			msg := r.Err.Error()
			rs.Err = &msg
		}
		run.Ranges = append(run.Ranges, rs)
	}
	if err := db.InsertRun(run); err != nil {
		return fmt.Errorf("storing run: %w", err)
	}

	for _, t := range tables {
		if err := db.SaveTable(meta.RunID, t.Name, t.Frame); err != nil {
			return err
		}
	}
	return nil
}

type heatFile struct {
	RunID      string                `json:"run_id"`
	Milestones []milestone           `json:"milestones"`
	Frames     []aggregate.HeatFrame `json:"frames"`
}

type milestone struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// WriteHeatFrames writes the monthly coordinate frames as JSON.
func WriteHeatFrames(path string, a *aggregate.Analysis, meta Meta) error {
	out := heatFile{RunID: meta.RunID, Frames: a.HeatFrames}
	if out.Frames == nil {
		out.Frames = []aggregate.HeatFrame{}
	}
	for _, m := range a.Milestones {
		out.Milestones = append(out.Milestones, milestone{Date: m.Date.Format("2006-01-02"), Label: m.Label})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding heat frames: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing heat frames: %w", err)
	}
	return nil
}
