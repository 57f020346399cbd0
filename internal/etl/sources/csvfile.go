package sources

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gdpetl/internal/etl"
)

// ── CSV Snapshot Source ─────────────────────────────────────
// Reads a file written by etl.FileSink back into a RecordSet so a table can
// be reloaded without fetching the page again.

// ReadCSVSnapshot parses path. The first row is the header
// ["", country column, gdp column]; each following row is
// [index, country, gdp].
func ReadCSVSnapshot(path string) (etl.RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return etl.RecordSet{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	rows, err := reader.ReadAll()
	if err != nil {
		return etl.RecordSet{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return etl.RecordSet{}, fmt.Errorf("empty csv file")
	}

	set := etl.RecordSet{
		Columns: []string{rows[0][1], rows[0][2]},
		Records: make([]etl.Record, 0, len(rows)-1),
	}
	for i, row := range rows[1:] {
		if idx, err := strconv.Atoi(strings.TrimSpace(row[0])); err != nil || idx != i {
			return etl.RecordSet{}, fmt.Errorf("row %d: bad index %q", i+1, row[0])
		}
		gdp, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return etl.RecordSet{}, fmt.Errorf("row %d: parse gdp: %w", i+1, err)
		}
		set.Records = append(set.Records, etl.Record{Country: row[1], GDPBillions: gdp})
	}
	return set, nil
}
