package etl

// ── Records ────────────────────────────────────────────────
// Intermediate data formats passed between pipeline stages.
// Extractors emit a RawTable, the transformer turns it into a RecordSet,
// and every sink consumes the same RecordSet.

// RawRecord is one qualifying source row, exactly as it appeared in the
// document. GDPText is a grouped integer in millions, e.g. "21,427,700".
type RawRecord struct {
	Country string `json:"country"`
	GDPText string `json:"gdpText"`
}

// RawTable is the ordered output of extraction. Columns names the two
// expected source columns.
type RawTable struct {
	Columns []string    `json:"columns"`
	Records []RawRecord `json:"records"`
}

// Record is a unit-converted row ready for persistence.
type Record struct {
	Country     string  `json:"country"`
	GDPBillions float64 `json:"gdpBillions"`
}

// RecordSet is the unit handed to sinks. It is built once per run and not
// modified afterwards; sinks must treat it as read-only.
type RecordSet struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (s RecordSet) Len() int { return len(s.Records) }

// CountryColumn returns the name of the country column.
func (s RecordSet) CountryColumn() string { return columnAt(s.Columns, 0, "country") }

// GDPColumn returns the name of the GDP column.
func (s RecordSet) GDPColumn() string { return columnAt(s.Columns, 1, "gdp_billions") }

// Rows returns the records as positional values in column order.
func (s RecordSet) Rows() [][]any {
	rows := make([][]any, len(s.Records))
	for i, r := range s.Records {
		rows[i] = []any{r.Country, r.GDPBillions}
	}
	return rows
}

func columnAt(cols []string, i int, fallback string) string {
	if i < len(cols) && cols[i] != "" {
		return cols[i]
	}
	return fallback
}
