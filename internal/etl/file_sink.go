package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// FileSink writes a record set as CSV with a leading 0-based index column.
// The header row is ["", country column, gdp column].
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write truncates or creates Path and writes the full record set.
func (s *FileSink) Write(ctx context.Context, set RecordSet) error {
	if err := ctx.Err(); err != nil {
		return &SinkError{Sink: "file", Err: err}
	}
	if err := s.write(set); err != nil {
		return &SinkError{Sink: "file", Err: err}
	}
	return nil
}

func (s *FileSink) write(set RecordSet) (err error) {
	f, err := os.Create(s.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"", set.CountryColumn(), set.GDPColumn()}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range set.Records {
		row := []string{
			strconv.Itoa(i),
			r.Country,
			strconv.FormatFloat(r.GDPBillions, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}
