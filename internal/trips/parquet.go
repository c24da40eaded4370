package trips

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ParquetSource reads a flat parquet file one row group at a time so memory
// stays bounded by the chunk size, not the file size.
type ParquetSource struct {
	f       *os.File
	groups  []parquet.RowGroup
	next    int
	rows    parquet.Rows
	columns []parquetColumn
	buf     []parquet.Row
}

type parquetColumn struct {
	name string
	unit time.Duration // non-zero for timestamp columns
}

// OpenParquet opens path and resolves its column layout.
func OpenParquet(path string) (*ParquetSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet: %w", err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	columns := make([]parquetColumn, len(paths))
	for i, p := range paths {
		columns[i].name = strings.Join(p, ".")
		if leaf, ok := schema.Lookup(p...); ok {
			columns[i].unit = timestampUnit(leaf.Node.Type())
		}
	}

	return &ParquetSource{
		f:       f,
		groups:  pf.RowGroups(),
		columns: columns,
	}, nil
}

// timestampUnit returns the tick size of a timestamp column, or 0.
func timestampUnit(t parquet.Type) time.Duration {
	lt := t.LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return 0
	}
	switch u := lt.Timestamp.Unit; {
	case u.Millis != nil:
		return time.Millisecond
	case u.Micros != nil:
		return time.Microsecond
	case u.Nanos != nil:
		return time.Nanosecond
	}
	return 0
}

// Next returns up to max records, crossing row group boundaries as needed.
func (s *ParquetSource) Next(max int) ([]Record, error) {
	if cap(s.buf) < max {
		s.buf = make([]parquet.Row, max)
	}
	buf := s.buf[:max]

	for {
		if s.rows == nil {
			if s.next >= len(s.groups) {
				return nil, io.EOF
			}
			s.rows = s.groups[s.next].Rows()
			s.next++
		}

		n, err := s.rows.ReadRows(buf)
		out := make([]Record, 0, n)
		for _, row := range buf[:n] {
			out = append(out, s.decode(row))
		}

		if errors.Is(err, io.EOF) {
			s.rows.Close()
			s.rows = nil
			if n == 0 {
				continue
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row group %d: %w", s.next-1, err)
		}
		if n > 0 {
			return out, nil
		}
	}
}

func (s *ParquetSource) decode(row parquet.Row) Record {
	r := make(Record, len(s.columns))
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(s.columns) {
			continue
		}
		col := s.columns[idx]
		r[col.name] = parquetValue(v, col.unit)
	}
	return r
}

// parquetValue converts a leaf value to a Record value. INT96 timestamps are
// not decoded and come back as nil.
func parquetValue(v parquet.Value, unit time.Duration) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return intOrTime(int64(v.Int32()), unit)
	case parquet.Int64:
		return intOrTime(v.Int64(), unit)
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return nil
}

func intOrTime(n int64, unit time.Duration) any {
	if unit == 0 {
		return n
	}
	return time.Unix(0, n*int64(unit)).UTC()
}

// Close releases the open row group and the file.
func (s *ParquetSource) Close() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.f.Close()
}
