package trips

import (
	"fmt"
	"strings"
	"time"
)

// Derived column names produced by Clean.
const (
	DurationColumn = "trip_duration"
	SpeedColumn    = "avg_speed"
)

// DurationUnit is the unit trip_duration is expressed in.
type DurationUnit string

const (
	Hours   DurationUnit = "hours"
	Minutes DurationUnit = "minutes"
)

// Of converts d into the unit.
func (u DurationUnit) Of(d time.Duration) float64 {
	if u == Minutes {
		return d.Minutes()
	}
	return d.Hours()
}

// LoadMode controls what happens to an existing table before a load.
type LoadMode string

const (
	// ModeAppend creates the table if absent and appends.
	ModeAppend LoadMode = "append"
	// ModeReplace drops and recreates the table on every load.
	ModeReplace LoadMode = "replace"
)

// ColumnType is the declared SQL type of a destination column.
type ColumnType string

const (
	Text     ColumnType = "TEXT"
	Integer  ColumnType = "INTEGER"
	Real     ColumnType = "REAL"
	Datetime ColumnType = "DATETIME"
)

// Column is one destination column. Source names the input field when it
// differs from Name.
type Column struct {
	Name    string     `yaml:"name"`
	Type    ColumnType `yaml:"type"`
	NotNull bool       `yaml:"not_null"`
	Source  string     `yaml:"source"`
}

// Field returns the input field the column is read from.
func (c Column) Field() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Variant describes one dataset shape: which fields carry the timestamps and
// measures, and how the cleaned rows are stored.
type Variant struct {
	Name          string       `yaml:"name"`
	FilePrefix    string       `yaml:"file_prefix"`
	PickupField   string       `yaml:"pickup_field"`
	DropoffField  string       `yaml:"dropoff_field"`
	FareField     string       `yaml:"fare_field"`
	DistanceField string       `yaml:"distance_field"`
	RequireFare   bool         `yaml:"require_fare"`
	DurationUnit  DurationUnit `yaml:"duration_unit"`
	Table         string       `yaml:"table"`
	LoadMode      LoadMode     `yaml:"load_mode"`
	Columns       []Column     `yaml:"columns"`
}

// Validate reports descriptor errors that would make Clean or the loader
// misbehave.
func (v *Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant: name is required")
	}
	if v.PickupField == "" || v.DropoffField == "" {
		return fmt.Errorf("variant %s: pickup and dropoff fields are required", v.Name)
	}
	if v.Table == "" {
		return fmt.Errorf("variant %s: table is required", v.Name)
	}
	if len(v.Columns) == 0 {
		return fmt.Errorf("variant %s: no columns", v.Name)
	}
	switch v.DurationUnit {
	case Hours, Minutes:
	default:
		return fmt.Errorf("variant %s: unknown duration unit %q", v.Name, v.DurationUnit)
	}
	switch v.LoadMode {
	case ModeAppend, ModeReplace:
	default:
		return fmt.Errorf("variant %s: unknown load mode %q", v.Name, v.LoadMode)
	}
	seen := make(map[string]bool, len(v.Columns))
	for _, c := range v.Columns {
		switch c.Type {
		case Text, Integer, Real, Datetime:
		default:
			return fmt.Errorf("variant %s: column %s: unknown type %q", v.Name, c.Name, c.Type)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("variant %s: duplicate column %s", v.Name, c.Name)
		}
		seen[key] = true
	}
	return nil
}

// ColumnNames returns the destination column names in order.
func (v *Variant) ColumnNames() []string {
	names := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		names[i] = c.Name
	}
	return names
}

// Matches reports whether a source file belongs to the variant.
func (v *Variant) Matches(filename string) bool {
	return v.FilePrefix != "" && strings.HasPrefix(strings.ToLower(filename), strings.ToLower(v.FilePrefix))
}

// VariantFor returns the variant whose prefix matches filename. The longest
// prefix wins so fhvhv files are not claimed by fhv.
func VariantFor(filename string, variants []Variant) (*Variant, bool) {
	var best *Variant
	for i := range variants {
		v := &variants[i]
		if !v.Matches(filename) {
			continue
		}
		if best == nil || len(v.FilePrefix) > len(best.FilePrefix) {
			best = v
		}
	}
	return best, best != nil
}

// Record is one raw input row keyed by source field name. Values are nil,
// string, int64, float64, bool or time.Time.
type Record map[string]any

// Trip is a cleaned record with its derived fields. Values holds the row
// projected onto the variant's columns, in column order.
type Trip struct {
	Pickup   time.Time
	Dropoff  time.Time
	Duration float64
	AvgSpeed *float64
	Fare     *float64
	Distance *float64
	Values   []any
}

// DailySummary is the per-day aggregate of a set of trips.
type DailySummary struct {
	Date    time.Time
	Trips   int
	AvgFare *float64
}
