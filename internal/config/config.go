package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
	"github.com/TobiSchelling/NoiseStory/internal/report"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const dateLayout = "2006-01-02"

type Config struct {
	Source   Source                `yaml:"source"`
	Ranges   []Range               `yaml:"ranges"`
	Phases   Phases                `yaml:"phases"`
	Geo      complaint.BoundingBox `yaml:"geo"`
	Analysis Analysis              `yaml:"analysis"`
	Output   Output                `yaml:"output"`
	Logging  Logging               `yaml:"logging"`
}

type Source struct {
	BaseURL          string   `yaml:"base_url"`
	Dataset          string   `yaml:"dataset"`
	ComplaintPattern string   `yaml:"complaint_pattern"`
	Columns          []string `yaml:"columns"`
	Limit            int      `yaml:"limit"`
	Timeout          string   `yaml:"timeout"`
	Concurrency      int      `yaml:"concurrency"`
	AppTokenEnv      string   `yaml:"app_token_env"`
}

type Range struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Label string `yaml:"label"`
}

// Phases overrides the policy dates. Empty fields keep the defaults.
type Phases struct {
	LockdownStart  string `yaml:"lockdown_start"`
	ReopeningStart string `yaml:"reopening_start"`
	Phase3Start    string `yaml:"phase3_start"`
	AnalysisEnd    string `yaml:"analysis_end"`
	BaselineStart  string `yaml:"baseline_start"`
	BaselineEnd    string `yaml:"baseline_end"`
}

type Analysis struct {
	RollingWindow   int    `yaml:"rolling_window"`
	TopN            int    `yaml:"top_n"`
	RegressionEpoch string `yaml:"regression_epoch"`
	FromYear        int    `yaml:"from_year"`
	ToYear          int    `yaml:"to_year"`
}

type Output struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for noisestory.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "noisestory")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/noisestory/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'noisestory init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			BaseURL:          fetch.DefaultBaseURL,
			Dataset:          fetch.DefaultDataset,
			ComplaintPattern: fetch.DefaultPattern,
			Columns:          append([]string(nil), complaint.Columns...),
			Limit:            fetch.DefaultLimit,
			Timeout:          "10m",
			Concurrency:      2,
			AppTokenEnv:      "NYC_OPEN_DATA_APP_TOKEN",
		},
		Geo: complaint.NYCBox,
		Analysis: Analysis{
			RollingWindow:   aggregate.DefaultWindow,
			TopN:            5,
			RegressionEpoch: aggregate.DefaultEpoch.Format(dateLayout),
			FromYear:        2019,
			ToYear:          2020,
		},
		Output:  Output{Formats: append([]string(nil), report.Formats...)},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads variables from the given .env files, skipping missing ones.
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env", filepath.Join(ConfigDir(), ".env")}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// GetOutputDir returns the effective output directory.
func (c *Config) GetOutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return "noisestory-output"
}

// FetchOptions builds the SODA client options. The app token is read from
// the environment variable named by app_token_env.
func (c *Config) FetchOptions() (fetch.Options, error) {
	opts := fetch.Options{
		BaseURL:     c.Source.BaseURL,
		Dataset:     c.Source.Dataset,
		Pattern:     c.Source.ComplaintPattern,
		Columns:     c.Source.Columns,
		Limit:       c.Source.Limit,
		Concurrency: c.Source.Concurrency,
	}
	if c.Source.Timeout != "" {
		d, err := time.ParseDuration(c.Source.Timeout)
		if err != nil {
			return fetch.Options{}, fmt.Errorf("parsing source.timeout: %w", err)
		}
		opts.Timeout = d
	}
	if c.Source.AppTokenEnv != "" {
		opts.AppToken = os.Getenv(c.Source.AppTokenEnv)
	}
	return opts, nil
}

// FetchRanges converts the configured ranges. With none configured it
// returns the calendar years of the analysis.
func (c *Config) FetchRanges() ([]fetch.Range, error) {
	if len(c.Ranges) == 0 {
		var out []fetch.Range
		for y := c.Analysis.FromYear; y <= c.Analysis.ToYear; y++ {
			out = append(out, fetch.Year(y))
		}
		return out, nil
	}

	out := make([]fetch.Range, 0, len(c.Ranges))
	for i, r := range c.Ranges {
		fr, err := fetch.NewRange(r.Start, r.End, r.Label)
		if err != nil {
			return nil, fmt.Errorf("ranges[%d]: %w", i, err)
		}
		out = append(out, fr)
	}
	return out, nil
}

// Boundaries applies the phase overrides to the default policy dates and
// validates the result.
func (c *Config) Boundaries() (phase.Boundaries, error) {
	b := phase.Default()
	for _, o := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"lockdown_start", c.Phases.LockdownStart, &b.LockdownStart},
		{"reopening_start", c.Phases.ReopeningStart, &b.ReopeningStart},
		{"phase3_start", c.Phases.Phase3Start, &b.Phase3Start},
		{"analysis_end", c.Phases.AnalysisEnd, &b.AnalysisEnd},
		{"baseline_start", c.Phases.BaselineStart, &b.BaselineStart},
		{"baseline_end", c.Phases.BaselineEnd, &b.BaselineEnd},
	} {
		if o.value == "" {
			continue
		}
		t, err := time.Parse(dateLayout, o.value)
		if err != nil {
			return phase.Boundaries{}, fmt.Errorf("parsing phases.%s: %w", o.name, err)
		}
		*o.dst = t
	}
	if err := b.Validate(); err != nil {
		return phase.Boundaries{}, fmt.Errorf("invalid phases: %w", err)
	}
	return b, nil
}

// AnalysisOptions builds the aggregation settings.
func (c *Config) AnalysisOptions() (aggregate.Options, error) {
	b, err := c.Boundaries()
	if err != nil {
		return aggregate.Options{}, err
	}
	opts := aggregate.DefaultOptions()
	opts.Boundaries = b
	opts.Window = c.Analysis.RollingWindow
	opts.TopN = c.Analysis.TopN
	opts.FromYear = c.Analysis.FromYear
	opts.ToYear = c.Analysis.ToYear
	if c.Analysis.RegressionEpoch != "" {
		epoch, err := time.Parse(dateLayout, c.Analysis.RegressionEpoch)
		if err != nil {
			return aggregate.Options{}, fmt.Errorf("parsing analysis.regression_epoch: %w", err)
		}
		opts.Epoch = epoch
	}
	if opts.Window <= 0 || opts.Window%2 == 0 {
		return aggregate.Options{}, fmt.Errorf("analysis.rolling_window must be odd and positive, got %d", opts.Window)
	}
	if opts.FromYear >= opts.ToYear {
		return aggregate.Options{}, fmt.Errorf("analysis.from_year %d must precede to_year %d", opts.FromYear, opts.ToYear)
	}
	return opts, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
