// Package aggregate turns cleaned, phase-tagged complaints into summary
// tables. Every function is pure: it reads its input and never mutates it.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// Dimension is a grouping key for Count.
type Dimension string

const (
	DimDate     Dimension = "date"
	DimMonth    Dimension = "month"
	DimYear     Dimension = "year"
	DimBorough  Dimension = "borough"
	DimCategory Dimension = "category"
	DimPhase    Dimension = "phase"
)

// Dimensions lists every supported grouping key.
var Dimensions = []Dimension{DimDate, DimMonth, DimYear, DimBorough, DimCategory, DimPhase}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

func (d Dimension) value(c complaint.Complaint) string {
	switch d {
	case DimDate:
		return c.DateKey()
	case DimMonth:
		return c.MonthKey()
	case DimYear:
		return strconv.Itoa(c.Year)
	case DimBorough:
		return c.Borough
	case DimCategory:
		return c.Category
	case DimPhase:
		return c.Phase.String()
	default:
		return ""
	}
}

// GroupCount is the number of records sharing one key. Key holds one value
// per requested dimension, in request order.
type GroupCount struct {
	Key   []string
	Count int
}

// Count groups records by dims and counts each group. Combinations with no
// records are absent. Groups are sorted by key: phases chronologically,
// everything else lexically.
func Count(records []complaint.Complaint, dims ...Dimension) []GroupCount {
	index := make(map[string]int)
	var out []GroupCount
	for _, r := range records {
		key := make([]string, len(dims))
		for i, d := range dims {
			key[i] = d.value(r)
		}
		k := strings.Join(key, "\x00")
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, GroupCount{Key: key, Count: 1})
	}
	sortCounts(out, dims)
	return out
}

func sortCounts(counts []GroupCount, dims []Dimension) {
	sort.SliceStable(counts, func(i, j int) bool {
		return compareKeys(counts[i].Key, counts[j].Key, dims) < 0
	})
}

func compareKeys(a, b []string, dims []Dimension) int {
	for i, d := range dims {
		var c int
		if d == DimPhase {
			c = phaseRank(a[i]) - phaseRank(b[i])
		} else {
			c = strings.Compare(a[i], b[i])
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func phaseRank(s string) int {
	p, err := phase.Parse(s)
	if err != nil {
		return 0
	}
	return int(p)
}

// Values returns the distinct values of d across records, in Count order.
func Values(records []complaint.Complaint, d Dimension) []string {
	counts := Count(records, d)
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Key[0]
	}
	return out
}

// Reindex expands counts to the full cartesian product of axes, one axis per
// key position. Missing combinations get a zero count; groups whose key is
// not on the axes are dropped.
func Reindex(counts []GroupCount, axes ...[]string) ([]GroupCount, error) {
	for _, c := range counts {
		if len(c.Key) != len(axes) {
			return nil, fmt.Errorf("key has %d values, reindexing over %d axes", len(c.Key), len(axes))
		}
	}

	have := make(map[string]int, len(counts))
	for _, c := range counts {
		have[strings.Join(c.Key, "\x00")] = c.Count
	}

	total := 1
	for _, axis := range axes {
		total *= len(axis)
	}
	if len(axes) == 0 {
		total = 0
	}

	out := make([]GroupCount, 0, total)
	key := make([]string, len(axes))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(axes) {
			k := append([]string(nil), key...)
			out = append(out, GroupCount{Key: k, Count: have[strings.Join(k, "\x00")]})
			return
		}
		for _, v := range axes[depth] {
			key[depth] = v
			walk(depth + 1)
		}
	}
	if total > 0 {
		walk(0)
	}
	return out, nil
}

// PhaseCounts returns the number of records in each phase. Every assignable
// phase is present, possibly with zero.
func PhaseCounts(records []complaint.Complaint) map[phase.Phase]int {
	out := make(map[phase.Phase]int, len(phase.All))
	for _, p := range phase.All {
		out[p] = 0
	}
	for _, r := range records {
		out[r.Phase]++
	}
	return out
}

// boroughsOf returns the five boroughs in report order, followed by Unknown
// when any record carries it.
func boroughsOf(records []complaint.Complaint) []string {
	out := append([]string(nil), complaint.Boroughs...)
	for _, r := range records {
		if r.Borough == complaint.Unknown {
			return append(out, complaint.Unknown)
		}
	}
	return out
}

// topCategories returns the n most frequent categories, ties broken by name.
// n <= 0 returns all of them.
func topCategories(records []complaint.Complaint, n int) []string {
	counts := Count(records, DimCategory)
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Key[0]
	}
	return out
}
