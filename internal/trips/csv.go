package trips

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource streams records from a delimited text file with a header row.
// Empty cells become nil.
type CSVSource struct {
	f      *os.File
	reader *csv.Reader
	header []string
}

// OpenCSV opens path and reads its header.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	// Strip BOM from first field if present
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return &CSVSource{f: f, reader: reader, header: header}, nil
}

// Next reads up to max rows. Returns io.EOF when done.
func (s *CSVSource) Next(max int) ([]Record, error) {
	out := make([]Record, 0, max)
	for len(out) < max {
		row, err := s.reader.Read()
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		out = append(out, s.decode(row))
	}
	return out, nil
}

func (s *CSVSource) decode(row []string) Record {
	r := make(Record, len(s.header))
	for i, col := range s.header {
		if i >= len(row) || row[i] == "" {
			r[col] = nil
			continue
		}
		r[col] = row[i]
	}
	return r
}

// Close releases the underlying file.
func (s *CSVSource) Close() error {
	return s.f.Close()
}
