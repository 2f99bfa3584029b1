package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/config"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
	"github.com/TobiSchelling/NoiseStory/internal/report"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID    string
	Steps    []StepResult
	Analysis *aggregate.Analysis
	Written  []string
}

// Options overrides config values for a single run.
type Options struct {
	// Limit replaces source.limit when positive.
	Limit int
	// OutputDir replaces output.dir when set.
	OutputDir string
	// Ranges replaces the configured fetch ranges when non-empty.
	Ranges []fetch.Range
}

// Pipeline orchestrates fetch -> clean -> classify -> aggregate -> export.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	out        io.Writer
	fetchOpts  fetch.Options
	ranges     []fetch.Range
	boundaries phase.Boundaries
	analysis   aggregate.Options
}

// New resolves the config into component settings. Invalid settings are
// reported here, before anything is fetched.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fo, err := cfg.FetchOptions()
	if err != nil {
		return nil, err
	}
	ranges, err := cfg.FetchRanges()
	if err != nil {
		return nil, err
	}
	ao, err := cfg.AnalysisOptions()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		out:        os.Stdout,
		fetchOpts:  fo,
		ranges:     ranges,
		boundaries: ao.Boundaries,
		analysis:   ao,
	}, nil
}

// SetOutput redirects the console summary.
func (p *Pipeline) SetOutput(w io.Writer) {
	p.out = w
}

func (p *Pipeline) client(opts Options) *fetch.Client {
	fo := p.fetchOpts
	if opts.Limit > 0 {
		fo.Limit = opts.Limit
	}
	return fetch.NewClient(fo, p.logger)
}

func (p *Pipeline) rangesFor(opts Options) []fetch.Range {
	if len(opts.Ranges) > 0 {
		return opts.Ranges
	}
	return p.ranges
}

func (p *Pipeline) outputDir(opts Options) string {
	if opts.OutputDir != "" {
		return opts.OutputDir
	}
	return p.cfg.GetOutputDir()
}

// Run executes the full pipeline. Fetch failures are carried in the step
// summaries and never stop the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", r.RunID))
	meta := report.Meta{RunID: r.RunID, GeneratedAt: time.Now().UTC()}

	exporter, err := report.NewExporter(p.outputDir(opts), p.cfg.Output.Formats, log)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Export", Err: err})
		return r
	}

	// Step 1: Fetch
	log.Info("step 1/5: fetching complaints", zap.Int("ranges", len(p.rangesFor(opts))))
	results, raw := p.fetchAll(ctx, opts)
	for _, res := range results {
		meta.Ranges = append(meta.Ranges, report.RangeStatus{
			Range:     res.Range,
			Records:   len(res.Records),
			Truncated: res.Truncated,
			Err:       res.Err,
		})
	}
	r.Steps = append(r.Steps, fetchStep(results, len(raw)))

	// Step 2: Clean
	log.Info("step 2/5: cleaning records")
	cleaner := complaint.NewCleaner(p.cfg.Geo, log)
	cleaned := cleaner.Clean(raw)
	meta.Clean = cleaner.Stats()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Clean",
		Summary: fmt.Sprintf("Kept %d of %d records (%d dropped)", meta.Clean.Kept, meta.Clean.Input, meta.Clean.Dropped()),
	})

	// Step 3: Classify
	log.Info("step 3/5: classifying phases")
	tagged := complaint.Tag(cleaned, p.boundaries)
	counts := aggregate.PhaseCounts(tagged)
	parts := make([]string, 0, len(phase.All))
	for _, ph := range phase.All {
		parts = append(parts, fmt.Sprintf("%s %d", ph.Label(), counts[ph]))
	}
	r.Steps = append(r.Steps, StepResult{Name: "Classify", Summary: strings.Join(parts, ", ")})

	// Step 4: Aggregate
	log.Info("step 4/5: aggregating")
	a, err := aggregate.Analyze(tagged, p.analysis)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Aggregate", Err: err})
		return r
	}
	r.Analysis = a
	failed := 0
	for _, reg := range a.Regressions {
		if reg.Err != nil {
			failed++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Aggregate",
		Summary: fmt.Sprintf("%d tables, %d days, %d borough regressions (%d not estimable)",
			len(a.Tables()), len(a.Daily), len(a.Regressions), failed),
	})

	// Step 5: Export
	log.Info("step 5/5: exporting")
	written, err := exporter.Export(a, meta)
	r.Written = written
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Export", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Export",
		Summary: fmt.Sprintf("Wrote %d files to %s", len(written), p.outputDir(opts)),
	})

	report.Print(p.out, a, meta)
	return r
}

func (p *Pipeline) fetchAll(ctx context.Context, opts Options) ([]fetch.Result, []complaint.RawRecord) {
	results := p.client(opts).FetchAll(ctx, p.rangesFor(opts))
	var raw []complaint.RawRecord
	for _, res := range results {
		raw = append(raw, res.Records...)
	}
	return results, raw
}

// Count fetches, cleans and classifies complaints, then counts them by the
// given dimensions. Failed ranges are logged and contribute no rows.
func (p *Pipeline) Count(ctx context.Context, opts Options, dims []aggregate.Dimension) (dataframe.DataFrame, StepResult) {
	results, raw := p.fetchAll(ctx, opts)
	step := fetchStep(results, len(raw))

	tagged := complaint.Tag(complaint.NewCleaner(p.cfg.Geo, p.logger).Clean(raw), p.boundaries)
	counts := aggregate.Count(tagged, dims...)
	p.logger.Debug("counted complaints", zap.Int("records", len(tagged)), zap.Int("groups", len(counts)))
	return aggregate.CountsTable(counts, dims), step
}

func fetchStep(results []fetch.Result, records int) StepResult {
	var failed, truncated []string
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed = append(failed, res.Range.Label)
		case res.Truncated:
			truncated = append(truncated, res.Range.Label)
		}
	}
	summary := fmt.Sprintf("Fetched %d records from %d ranges", records, len(results))
	if len(failed) > 0 {
		summary += fmt.Sprintf("; failed: %s", strings.Join(failed, ", "))
	}
	if len(truncated) > 0 {
		summary += fmt.Sprintf("; truncated: %s", strings.Join(truncated, ", "))
	}
	return StepResult{Name: "Fetch", Summary: summary}
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(opts Options) *Result {
	r := &Result{}
	c := p.client(opts)

	var urls []string
	for _, rg := range p.rangesFor(opts) {
		urls = append(urls, fmt.Sprintf("%s: GET %s", rg.Label, c.RequestURL(rg)))
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: "[dry-run] " + strings.Join(urls, "\n  "),
	})
	r.Steps = append(r.Steps, StepResult{
		Name: "Classify",
		Summary: fmt.Sprintf("[dry-run] lockdown from %s, reopening from %s",
			p.boundaries.LockdownStart.Format("2006-01-02"), p.boundaries.ReopeningStart.Format("2006-01-02")),
	})
	formats := p.cfg.Output.Formats
	if len(formats) == 0 {
		formats = report.Formats
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Export",
		Summary: fmt.Sprintf("[dry-run] Would write %s to %s", strings.Join(formats, ", "), p.outputDir(opts)),
	})
	return r
}
