package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// TableExists reports whether table is present in the store.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, db.dialect.tableSQL, table).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// HourCount is the number of trips picked up in one hour of the day.
type HourCount struct {
	Hour  int
	Trips int64
}

// PeakHours counts trips per pickup hour, ordered by hour.
func (db *DB) PeakHours(ctx context.Context, table, pickupCol string) ([]HourCount, error) {
	d := db.dialect
	q := fmt.Sprintf(`
		SELECT %s AS hour, COUNT(*) AS trip_count
		FROM %s
		GROUP BY 1
		ORDER BY 1`, d.hour(pickupCol), d.quote(table))

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("peak hours query: %w", err)
	}
	defer rows.Close()

	var out []HourCount
	for rows.Next() {
		var h HourCount
		var hour sql.NullInt64
		if err := rows.Scan(&hour, &h.Trips); err != nil {
			return nil, fmt.Errorf("scan peak hour: %w", err)
		}
		if !hour.Valid {
			continue
		}
		h.Hour = int(hour.Int64)
		out = append(out, h)
	}
	return out, rows.Err()
}

// FareBucket is the average fare for trips with a given passenger count.
// PassengerCount is nil for trips where it was not recorded.
type FareBucket struct {
	PassengerCount *float64
	AvgFare        *float64
	Trips          int64
}

// FareByPassengerCount averages fareCol per passenger_count.
func (db *DB) FareByPassengerCount(ctx context.Context, table, fareCol string) ([]FareBucket, error) {
	d := db.dialect
	q := fmt.Sprintf(`
		SELECT %[1]s, AVG(%[2]s), COUNT(*)
		FROM %[3]s
		GROUP BY %[1]s
		ORDER BY %[1]s`, d.quote("passenger_count"), d.quote(fareCol), d.quote(table))

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fare by passenger count query: %w", err)
	}
	defer rows.Close()

	var out []FareBucket
	for rows.Next() {
		var (
			b      FareBucket
			pc     sql.NullFloat64
			avgFee sql.NullFloat64
		)
		if err := rows.Scan(&pc, &avgFee, &b.Trips); err != nil {
			return nil, fmt.Errorf("scan fare bucket: %w", err)
		}
		if pc.Valid {
			b.PassengerCount = &pc.Float64
		}
		if avgFee.Valid {
			b.AvgFare = &avgFee.Float64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MonthCount is the number of trips picked up in one calendar month.
type MonthCount struct {
	Month string // YYYY-MM
	Trips int64
}

// MonthlyTrips counts trips per pickup month, oldest first.
func (db *DB) MonthlyTrips(ctx context.Context, table, pickupCol string) ([]MonthCount, error) {
	d := db.dialect
	q := fmt.Sprintf(`
		SELECT %s AS month, COUNT(*) AS trip_count
		FROM %s
		GROUP BY 1
		ORDER BY 1`, d.month(pickupCol), d.quote(table))

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("monthly trips query: %w", err)
	}
	defer rows.Close()

	var out []MonthCount
	for rows.Next() {
		var m MonthCount
		var month sql.NullString
		if err := rows.Scan(&month, &m.Trips); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		m.Month = month.String
		out = append(out, m)
	}
	return out, rows.Err()
}
