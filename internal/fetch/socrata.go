package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
)

const (
	DefaultBaseURL = "https://data.cityofnewyork.us"
	DefaultDataset = "erm2-nwe9"
	DefaultPattern = "%Noise%"
	DefaultLimit   = 10000000
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Dataset     string
	Pattern     string
	Columns     []string
	Limit       int
	AppToken    string
	Timeout     time.Duration
	Concurrency int
}

// Result holds one range's fetch outcome. A failed fetch has no records
// and a non-nil Err.
type Result struct {
	Range     Range
	Records   []complaint.RawRecord
	Truncated bool
	Err       error
}

// Client fetches noise complaints from a Socrata SODA CSV endpoint.
type Client struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a new SODA client, filling unset options with defaults.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Dataset == "" {
		opts.Dataset = DefaultDataset
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if len(opts.Columns) == 0 {
		opts.Columns = complaint.Columns
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
}

// RequestURL returns the URL Fetch would request for r.
func (c *Client) RequestURL(r Range) string {
	params := url.Values{
		"$where":  {r.whereClause(c.opts.Pattern)},
		"$limit":  {strconv.Itoa(c.opts.Limit)},
		"$select": {strings.Join(c.opts.Columns, ",")},
	}
	base := strings.TrimRight(c.opts.BaseURL, "/")
	return fmt.Sprintf("%s/resource/%s.csv?%s", base, c.opts.Dataset, params.Encode())
}

// Fetch retrieves all records in r with a single request. Failures are
// logged and returned in Result.Err; there is no retry.
func (c *Client) Fetch(ctx context.Context, r Range) Result {
	res := Result{Range: r}
	log := c.logger.With(zap.String("range", r.ID()))
	log.Info("fetching complaints")

	records, err := c.fetch(ctx, r)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		res.Err = err
		return res
	}

	res.Records = records
	res.Truncated = len(records) >= c.opts.Limit
	if res.Truncated {
		log.Warn("row limit reached, result may be incomplete", zap.Int("limit", c.opts.Limit))
	}
	log.Info("fetched complaints", zap.Int("records", len(records)))
	return res
}

// FetchAll fetches every range, at most Concurrency at a time. Results are
// returned in range order and each range fails on its own.
func (c *Client) FetchAll(ctx context.Context, ranges []Range) []Result {
	results := make([]Result, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, r := range ranges {
		g.Go(func() error {
			results[i] = c.Fetch(gctx, r)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Client) fetch(ctx context.Context, r Range) ([]complaint.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(r), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("User-Agent", "NoiseStory/1.0 (311 analysis)")
	if c.opts.AppToken != "" {
		req.Header.Set("X-App-Token", c.opts.AppToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", r.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return ParseCSV(body)
}

// ParseCSV converts a SODA CSV body into raw records. Columns missing from
// the body yield empty fields.
func ParseCSV(body []byte) ([]complaint.RawRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !bytes.Contains(trimmed, []byte("\n")) {
		// Header only, or nothing at all.
		return nil, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(trimmed),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parsing csv: %w", df.Err)
	}

	n := df.Nrow()
	col := func(name string) []string {
		s := df.Col(name)
		if s.Err != nil {
			return make([]string, n)
		}
		vals := s.Records()
		for i, na := range s.IsNaN() {
			if na {
				vals[i] = ""
			}
		}
		return vals
	}

	created := col(complaint.ColCreatedDate)
	ctype := col(complaint.ColComplaintType)
	descriptor := col(complaint.ColDescriptor)
	address := col(complaint.ColIncidentAddress)
	borough := col(complaint.ColBorough)
	lat := col(complaint.ColLatitude)
	lon := col(complaint.ColLongitude)
	status := col(complaint.ColStatus)

	records := make([]complaint.RawRecord, n)
	for i := 0; i < n; i++ {
		records[i] = complaint.RawRecord{
			CreatedDate:     created[i],
			ComplaintType:   ctype[i],
			Descriptor:      descriptor[i],
			IncidentAddress: address[i],
			Borough:         borough[i],
			Latitude:        lat[i],
			Longitude:       lon[i],
			Status:          status[i],
		}
	}
	return records, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, http.StatusText(e.code))
}
