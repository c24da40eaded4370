package trips

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ProcessedPath is the per-variant output file inside dir.
func ProcessedPath(dir string, v *Variant) string {
	return filepath.Join(dir, "processed_"+v.Name+".csv")
}

// AppendProcessed appends cleaned trips to the variant's processed CSV file.
// The header row is written only when the file did not exist before.
func AppendProcessed(dir string, v *Variant, trips []Trip) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}

	path := ProcessedPath(dir, v)
	_, err := os.Stat(path)
	writeHeader := errors.Is(err, fs.ErrNotExist)
	if err != nil && !writeHeader {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(v.ColumnNames()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := make([]string, len(v.Columns))
	for i := range trips {
		for j, val := range trips[i].Values {
			row[j] = formatCell(val)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	}
	return fmt.Sprint(v)
}
