package database

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnType(t series.Type) string {
	switch t {
	case series.Int, series.Bool:
		return "INTEGER"
	case series.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

// SaveTable stores a data frame as a SQLite table named name, with a
// leading run_id column. NA cells become NULL.
func (db *DB) SaveTable(runID, name string, df dataframe.DataFrame) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	if df.Err != nil {
		return fmt.Errorf("table %s: %w", name, df.Err)
	}

	names := df.Names()
	types := df.Types()
	defs := []string{"run_id TEXT NOT NULL REFERENCES runs(id)"}
	cols := []string{"run_id"}
	for i, n := range names {
		defs = append(defs, fmt.Sprintf("%s %s", quote(n), columnType(types[i])))
		cols = append(cols, quote(n))
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin table %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating table %s: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	defer stmt.Close()

	columns := make([]series.Series, len(names))
	for i, n := range names {
		columns[i] = df.Col(n)
	}

	rows := df.Nrow()
	for r := 0; r < rows; r++ {
		args := make([]any, 0, len(cols))
		args = append(args, runID)
		for c, s := range columns {
			args = append(args, cellValue(s.Elem(r), types[c]))
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO result_tables (run_id, name, row_count) VALUES (?, ?, ?)",
		runID, name, rows,
	); err != nil {
		return fmt.Errorf("cataloguing %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit table %s: %w", name, err)
	}
	db.logger.Debug("stored table", zap.String("table", name), zap.Int("rows", rows))
	return nil
}

func cellValue(e series.Element, t series.Type) any {
	if e.IsNA() {
		return nil
	}
	switch t {
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Float:
		return e.Float()
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil
		}
		if v {
			return 1
		}
		return 0
	default:
		return e.String()
	}
}
