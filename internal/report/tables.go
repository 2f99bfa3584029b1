package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
)

// records renders a frame as strings, header first. NA cells are empty.
func records(df dataframe.DataFrame) [][]string {
	names := df.Names()
	out := make([][]string, 0, df.Nrow()+1)
	out = append(out, names)

	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]string, len(cols))
		for c, s := range cols {
			e := s.Elem(r)
			switch {
			case e.IsNA():
				row[c] = ""
			case e.Type() == series.Float:
				row[c] = strconv.FormatFloat(e.Float(), 'f', -1, 64)
			default:
				row[c] = e.String()
			}
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes one CSV file per table into dir.
func WriteCSV(dir string, tables []aggregate.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tables directory: %w", err)
	}

	var paths []string
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeCSVFile(path, t.Frame); err != nil {
			return paths, fmt.Errorf("writing %s: %w", t.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, df dataframe.DataFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteTable(f, df); err != nil {
		return err
	}
	return f.Close()
}

// WriteTable writes a frame as CSV, leaving NA cells empty.
func WriteTable(w io.Writer, df dataframe.DataFrame) error {
	return csv.NewWriter(w).WriteAll(records(df))
}

// sheetName fits a table name into Excel's 31-character sheet limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

// WriteWorkbook writes every table to its own sheet of an XLSX file.
func WriteWorkbook(path string, tables []aggregate.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for _, t := range tables {
		sheet := sheetName(t.Name)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("adding sheet %s: %w", sheet, err)
		}

		df := t.Frame
		colNames := df.Names()
		for c, name := range colNames {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			f.SetCellValue(sheet, cell, name)
		}
		if len(colNames) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(colNames), 1)
			f.SetCellStyle(sheet, "A1", last, bold)
		}

		for c, name := range colNames {
			col := df.Col(name)
			for r := 0; r < df.Nrow(); r++ {
				e := col.Elem(r)
				if e.IsNA() {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				f.SetCellValue(sheet, cell, e.Val())
			}
		}
	}

	if len(tables) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("removing default sheet: %w", err)
		}
		if idx, err := f.GetSheetIndex(sheetName(tables[0].Name)); err == nil {
			f.SetActiveSheet(idx)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
