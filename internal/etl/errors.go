package etl

import "fmt"

// FetchError reports a failure retrieving the source document.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StructureError reports that the document no longer has the expected
// table or row layout.
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string { return "unexpected document structure: " + e.Reason }

// FormatError reports a GDP cell that survived extraction filtering but
// does not parse as a grouped integer.
type FormatError struct {
	Row     int
	Country string
	Text    string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("row %d (%s): cannot parse gdp %q: %v", e.Row, e.Country, e.Text, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// SinkError reports a failed write to a sink (file, table or progress log).
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return fmt.Sprintf("%s sink: %v", e.Sink, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }
