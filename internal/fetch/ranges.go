package fetch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Range is an inclusive calendar-date window.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
}

// NewRange parses YYYY-MM-DD start and end dates.
func NewRange(start, end, label string) (Range, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Range{}, fmt.Errorf("parsing range start %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Range{}, fmt.Errorf("parsing range end %q: %w", end, err)
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("range end %s precedes start %s", end, start)
	}
	r := Range{Start: s, End: e, Label: label}
	if r.Label == "" {
		r.Label = r.ID()
	}
	return r, nil
}

// Year returns a range covering one calendar year.
func Year(y int) Range {
	return Range{
		Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		Label: fmt.Sprintf("%d", y),
	}
}

// ID returns "YYYY-MM-DD" for a single day or "YYYY-MM-DD..YYYY-MM-DD".
func (r Range) ID() string {
	start := r.Start.Format(dateLayout)
	end := r.End.Format(dateLayout)
	if start == end {
		return start
	}
	return start + ".." + end
}

// Display formats the range for humans.
// Single day: "Feb 06, 2020"; range: "Feb 01, 2019 - Feb 06, 2020".
func (r Range) Display() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format("Jan 02, 2006")
	}
	if r.Start.Year() == r.End.Year() {
		return fmt.Sprintf("%s - %s", r.Start.Format("Jan 02"), r.End.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", r.Start.Format("Jan 02, 2006"), r.End.Format("Jan 02, 2006"))
}

// ParseRangeID is the inverse of Range.ID. A bare four-digit year is
// accepted as that calendar year.
func ParseRangeID(id string) (Range, error) {
	if len(id) == 4 {
		if y, err := strconv.Atoi(id); err == nil {
			return Year(y), nil
		}
	}
	if strings.Contains(id, "..") {
		parts := strings.SplitN(id, "..", 2)
		return NewRange(parts[0], parts[1], "")
	}
	return NewRange(id, id, "")
}

// whereClause builds the SoQL filter for the range.
func (r Range) whereClause(pattern string) string {
	return fmt.Sprintf("created_date between '%sT00:00:00' and '%sT23:59:59' AND complaint_type like '%s'",
		r.Start.Format(dateLayout), r.End.Format(dateLayout), pattern)
}
