package storage

import (
	"fmt"
	"strings"
	"time"

	"nyctaxi/internal/trips"
)

// dialect captures the SQL differences between the supported stores.
type dialect struct {
	name    string
	quoteCh string
	dollar  bool // $1 placeholders instead of ?
	types   map[trips.ColumnType]string
	// textTimes stores timestamps as "YYYY-MM-DD HH:MM:SS" strings so SQLite
	// date functions can read them.
	textTimes bool
	hourExpr  string // fmt pattern taking a quoted column
	monthExpr string
	tableSQL  string // existence check, one placeholder for the table name
}

var dialects = map[string]dialect{
	"sqlite3": {
		name:    "sqlite3",
		quoteCh: `"`,
		types: map[trips.ColumnType]string{
			trips.Text:     "TEXT",
			trips.Integer:  "INTEGER",
			trips.Real:     "REAL",
			trips.Datetime: "DATETIME",
		},
		textTimes: true,
		hourExpr:  "CAST(strftime('%%H', %s) AS INTEGER)",
		monthExpr: "strftime('%%Y-%%m', %s)",
		tableSQL:  `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	},
	"pgx": {
		name:    "pgx",
		quoteCh: `"`,
		dollar:  true,
		types: map[trips.ColumnType]string{
			trips.Text:     "TEXT",
			trips.Integer:  "BIGINT",
			trips.Real:     "DOUBLE PRECISION",
			trips.Datetime: "TIMESTAMP",
		},
		hourExpr:  "CAST(EXTRACT(HOUR FROM %s) AS INTEGER)",
		monthExpr: "to_char(%s, 'YYYY-MM')",
		tableSQL:  `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`,
	},
	"mysql": {
		name:    "mysql",
		quoteCh: "`",
		types: map[trips.ColumnType]string{
			trips.Text:     "TEXT",
			trips.Integer:  "BIGINT",
			trips.Real:     "DOUBLE",
			trips.Datetime: "DATETIME",
		},
		hourExpr:  "HOUR(%s)",
		monthExpr: "DATE_FORMAT(%s, '%%Y-%%m')",
		tableSQL:  `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

func (d dialect) quote(ident string) string {
	return d.quoteCh + strings.ReplaceAll(ident, d.quoteCh, d.quoteCh+d.quoteCh) + d.quoteCh
}

// placeholders returns n comma-separated bind parameters.
func (d dialect) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		if d.dollar {
			ps[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

func (d dialect) columnType(t trips.ColumnType) string {
	if s, ok := d.types[t]; ok {
		return s
	}
	return d.types[trips.Text]
}

// arg converts a row value into a driver argument.
func (d dialect) arg(v any) any {
	if t, ok := v.(time.Time); ok {
		if d.textTimes {
			return t.UTC().Format("2006-01-02 15:04:05")
		}
		return t.UTC()
	}
	return v
}

func (d dialect) hour(col string) string  { return fmt.Sprintf(d.hourExpr, d.quote(col)) }
func (d dialect) month(col string) string { return fmt.Sprintf(d.monthExpr, d.quote(col)) }
