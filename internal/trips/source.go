package trips

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Source yields raw records from a trip data file.
type Source interface {
	// Next returns up to max records. It returns io.EOF once the source is
	// exhausted.
	Next(max int) ([]Record, error)
	Close() error
}

// Open picks a reader for path by its extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return OpenParquet(path)
	case ".csv":
		return OpenCSV(path)
	default:
		return nil, fmt.Errorf("unsupported source format: %s", filepath.Base(path))
	}
}
