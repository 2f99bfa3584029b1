package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
)

// DefaultWindow is the centered rolling-mean width used for daily trends.
const DefaultWindow = 7

// DailyPoint is the complaint count for one observed day and its centered
// rolling mean. Rolling is nil near the series edges.
type DailyPoint struct {
	Date    time.Time
	Count   int
	Rolling *float64
}

// Daily counts records per calendar day and smooths the counts with a
// centered rolling mean of the given window. Only observed days appear.
func Daily(records []complaint.Complaint, window int) ([]DailyPoint, error) {
	byDay := make(map[time.Time]int)
	for _, r := range records {
		byDay[r.Date]++
	}

	points := make([]DailyPoint, 0, len(byDay))
	for d, n := range byDay {
		points = append(points, DailyPoint{Date: d, Count: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = float64(p.Count)
	}
	rolling, err := RollingMean(values, window)
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].Rolling = rolling[i]
	}
	return points, nil
}

// RollingMean returns the centered mean of each window-wide neighbourhood.
// The first and last window/2 positions have no full window and are nil.
// window must be odd and positive.
func RollingMean(values []float64, window int) ([]*float64, error) {
	if window <= 0 || window%2 == 0 {
		return nil, fmt.Errorf("rolling window must be odd and positive, got %d", window)
	}

	half := window / 2
	out := make([]*float64, len(values))
	if len(values) < window {
		return out, nil
	}

	var sum float64
	for i := 0; i < window; i++ {
		sum += values[i]
	}
	for center := half; center < len(values)-half; center++ {
		if center > half {
			sum += values[center+half] - values[center-half-1]
		}
		mean := sum / float64(window)
		out[center] = &mean
	}
	return out, nil
}

// FilterYear returns the records whose timestamp falls in year y.
func FilterYear(records []complaint.Complaint, y int) []complaint.Complaint {
	var out []complaint.Complaint
	for _, r := range records {
		if r.Year == y {
			out = append(out, r)
		}
	}
	return out
}
