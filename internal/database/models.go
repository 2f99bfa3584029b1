package database

import "time"

// Run is the metadata of one pipeline execution.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched int
	Kept    int
	Dropped int

	LockdownStart  string
	ReopeningStart string
	AnalysisEnd    string

	Ranges      []RangeStat
	DropReasons map[string]int
}

// RangeStat records how one fetched date range went.
type RangeStat struct {
	Label     string
	Start     string
	End       string
	Records   int
	Truncated bool
	Err       *string
}

// TableInfo is a catalog entry for a stored result table.
type TableInfo struct {
	Name     string
	RowCount int
}
