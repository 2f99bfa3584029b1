package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// InsertRun stores the run metadata together with its ranges and drop
// reasons.
func (db *DB) InsertRun(r Run) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	var finished *string
	if !r.FinishedAt.IsZero() {
		s := r.FinishedAt.UTC().Format(time.RFC3339)
		finished = &s
	}

	_, err = tx.Exec(
		`INSERT INTO runs
		(id, started_at, finished_at, records_fetched, records_kept, records_dropped,
		lockdown_start, reopening_start, analysis_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339), finished, r.Fetched, r.Kept, r.Dropped,
		r.LockdownStart, r.ReopeningStart, r.AnalysisEnd,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, rs := range r.Ranges {
		truncated := 0
		if rs.Truncated {
			truncated = 1
		}
		_, err := tx.Exec(
			`INSERT INTO run_ranges (run_id, position, label, range_start, range_end, records, truncated, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, rs.Label, rs.Start, rs.End, rs.Records, truncated, rs.Err,
		)
		if err != nil {
			return fmt.Errorf("inserting range %s: %w", rs.Label, err)
		}
	}

	for reason, n := range r.DropReasons {
		if _, err := tx.Exec(
			"INSERT INTO drop_reasons (run_id, reason, count) VALUES (?, ?, ?)",
			r.ID, reason, n,
		); err != nil {
			return fmt.Errorf("inserting drop reason %s: %w", reason, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the run with the given ID, or nil if there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, started_at, finished_at, records_fetched, records_kept, records_dropped,
		lockdown_start, reopening_start, analysis_end
		FROM runs WHERE id = ?`, id,
	)

	var r Run
	var started string
	var finished sql.NullString
	if err := row.Scan(&r.ID, &started, &finished, &r.Fetched, &r.Kept, &r.Dropped,
		&r.LockdownStart, &r.ReopeningStart, &r.AnalysisEnd); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
	}

	ranges, err := db.getRanges(id)
	if err != nil {
		return nil, err
	}
	r.Ranges = ranges

	reasons, err := db.getDropReasons(id)
	if err != nil {
		return nil, err
	}
	r.DropReasons = reasons
	return &r, nil
}

// LatestRun returns the most recently started run, or nil if the file
// holds none.
func (db *DB) LatestRun() (*Run, error) {
	var id string
	err := db.conn.QueryRow("SELECT id FROM runs ORDER BY started_at DESC LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest run: %w", err)
	}
	return db.GetRun(id)
}

func (db *DB) getRanges(runID string) ([]RangeStat, error) {
	rows, err := db.conn.Query(
		`SELECT label, range_start, range_end, records, truncated, error
		FROM run_ranges WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RangeStat
	for rows.Next() {
		var rs RangeStat
		var truncated int
		if err := rows.Scan(&rs.Label, &rs.Start, &rs.End, &rs.Records, &truncated, &rs.Err); err != nil {
			return nil, err
		}
		rs.Truncated = truncated != 0
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (db *DB) getDropReasons(runID string) (map[string]int, error) {
	rows, err := db.conn.Query("SELECT reason, count FROM drop_reasons WHERE run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

// GetTables returns the catalog of result tables stored for a run, by name.
func (db *DB) GetTables(runID string) ([]TableInfo, error) {
	rows, err := db.conn.Query("SELECT name, row_count FROM result_tables WHERE run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.RowCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, rows.Err()
}
