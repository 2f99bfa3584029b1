package complaint

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CategoryPrefix is stripped from complaint types to form the category.
const CategoryPrefix = "Noise - "

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006 03:04:05 PM",
	"2006-01-02",
}

var knownBoroughs = map[string]struct{}{
	Manhattan:    {},
	Brooklyn:     {},
	Queens:       {},
	Bronx:        {},
	StatenIsland: {},
}

// Stats counts what happened to each input row.
type Stats struct {
	Input          int
	Kept           int
	BadTimestamp   int
	BadCoordinates int
	OutOfBounds    int
	NullBorough    int
	NullCategory   int
}

// Dropped returns the number of rows removed.
func (s Stats) Dropped() int {
	return s.Input - s.Kept
}

// Cleaner turns raw rows into validated complaints. It is not safe for
// concurrent use.
type Cleaner struct {
	box    BoundingBox
	title  cases.Caser
	logger *zap.Logger
	stats  Stats
}

// NewCleaner creates a Cleaner that keeps points inside box.
func NewCleaner(box BoundingBox, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{
		box:    box,
		title:  cases.Title(language.English),
		logger: logger,
	}
}

// Stats returns counters for the last Clean or Normalize call.
func (c *Cleaner) Stats() Stats {
	return c.stats
}

// Clean parses, validates and normalizes raw rows. Rows with a bad
// timestamp or coordinate are dropped; null labels get sentinel values.
func (c *Cleaner) Clean(raw []RawRecord) []Complaint {
	c.stats = Stats{Input: len(raw)}
	out := make([]Complaint, 0, len(raw))

	for _, r := range raw {
		createdAt, ok := ParseTimestamp(r.CreatedDate)
		if !ok {
			c.stats.BadTimestamp++
			continue
		}

		lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.Latitude), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.Longitude), 64)
		if errLat != nil || errLon != nil {
			c.stats.BadCoordinates++
			continue
		}

		cm, ok := c.normalize(Complaint{
			CreatedAt:  createdAt,
			Borough:    r.Borough,
			Category:   r.ComplaintType,
			Latitude:   lat,
			Longitude:  lon,
			Descriptor: r.Descriptor,
			Address:    r.IncidentAddress,
			Status:     r.Status,
		})
		if !ok {
			c.stats.OutOfBounds++
			continue
		}
		if strings.TrimSpace(r.Borough) == "" {
			c.stats.NullBorough++
		}
		if strings.TrimSpace(r.ComplaintType) == "" {
			c.stats.NullCategory++
		}
		out = append(out, cm)
	}

	c.stats.Kept = len(out)
	c.logDone("clean")
	return out
}

// Normalize re-applies validation and normalization to complaints. On
// records that already satisfy every invariant it returns them unchanged,
// phase included.
func (c *Cleaner) Normalize(records []Complaint) []Complaint {
	c.stats = Stats{Input: len(records)}
	out := make([]Complaint, 0, len(records))

	for _, r := range records {
		if r.CreatedAt.IsZero() {
			c.stats.BadTimestamp++
			continue
		}
		cm, ok := c.normalize(r)
		if !ok {
			c.stats.OutOfBounds++
			continue
		}
		out = append(out, cm)
	}

	c.stats.Kept = len(out)
	c.logDone("normalize")
	return out
}

func (c *Cleaner) normalize(r Complaint) (Complaint, bool) {
	if !c.box.Contains(r.Latitude, r.Longitude) {
		return Complaint{}, false
	}

	t := r.CreatedAt
	r.Date = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	r.Year = t.Year()
	r.Month = t.Month()
	r.Day = t.Day()
	r.Hour = t.Hour()
	r.Weekday = t.Weekday().String()
	r.IsWeekend = t.Weekday() == time.Saturday || t.Weekday() == time.Sunday

	r.Borough = c.normalizeBorough(r.Borough)
	r.Category = normalizeCategory(r.Category)
	r.Descriptor = strings.TrimSpace(r.Descriptor)
	r.Address = strings.TrimSpace(r.Address)
	r.Status = strings.TrimSpace(r.Status)
	return r, true
}

func (c *Cleaner) normalizeBorough(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Unknown
	}
	s = c.title.String(strings.ToLower(s))
	if _, ok := knownBoroughs[s]; ok {
		return s
	}
	return Unknown
}

// normalizeCategory removes every occurrence of the prefix, repeating until
// the label is stable.
func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := strings.TrimSpace(strings.ReplaceAll(s, CategoryPrefix, ""))
		if next == s {
			break
		}
		s = next
	}
	if s == "" {
		return OtherCategory
	}
	return s
}

// ParseTimestamp parses a created_date value in any accepted layout and
// returns it as a naive wall-clock time in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			// Wall-clock values; drop any zone so date math stays DST-free.
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(),
				t.Second(), t.Nanosecond(), time.UTC), true
		}
	}
	return time.Time{}, false
}

func (c *Cleaner) logDone(op string) {
	s := c.stats
	c.logger.Debug("cleaning complete",
		zap.String("op", op),
		zap.Int("input", s.Input),
		zap.Int("kept", s.Kept),
		zap.Int("bad_timestamp", s.BadTimestamp),
		zap.Int("bad_coordinates", s.BadCoordinates),
		zap.Int("out_of_bounds", s.OutOfBounds),
		zap.Int("null_borough", s.NullBorough),
		zap.Int("null_category", s.NullCategory),
	)
}
