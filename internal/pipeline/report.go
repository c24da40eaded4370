package pipeline

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"nyctaxi/internal/storage"
	"nyctaxi/internal/trips"
)

// Report prints the summary queries for every variant table present in the
// store. Tables that were never loaded are skipped.
func (r *Runner) Report(ctx context.Context, w io.Writer) error {
	db, err := storage.Open(r.cfg.DBDriver, r.cfg.DBDSN, r.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := range r.cfg.Variants {
		v := &r.cfg.Variants[i]
		ok, err := db.TableExists(ctx, v.Table)
		if err != nil {
			return err
		}
		if !ok {
			r.logger.Info("table not loaded, skipping report", "table", v.Table)
			continue
		}
		if err := reportVariant(ctx, db, v, w); err != nil {
			return fmt.Errorf("report %s: %w", v.Table, err)
		}
	}
	return nil
}

func reportVariant(ctx context.Context, db *storage.DB, v *trips.Variant, w io.Writer) error {
	pickup, ok := columnFor(v, v.PickupField)
	if !ok {
		return fmt.Errorf("pickup field %s is not stored", v.PickupField)
	}

	fmt.Fprintf(w, "== %s (%s) ==\n", v.Table, v.Name)

	hours, err := db.PeakHours(ctx, v.Table, pickup)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "hour\ttrips\t")
	for _, h := range hours {
		fmt.Fprintf(tw, "%02d\t%d\t\n", h.Hour, h.Trips)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	months, err := db.MonthlyTrips(ctx, v.Table, pickup)
	if err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "month\ttrips\t")
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%d\t\n", m.Month, m.Trips)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	fare, hasFare := columnFor(v, v.FareField)
	if _, hasPC := columnFor(v, "passenger_count"); !hasFare || !hasPC {
		return nil
	}
	buckets, err := db.FareByPassengerCount(ctx, v.Table, fare)
	if err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "passengers\tavg_fare\ttrips\t")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t\n", optional(b.PassengerCount, "%g"), optional(b.AvgFare, "%.2f"), b.Trips)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// columnFor returns the stored column name fed by source field.
func columnFor(v *trips.Variant, field string) (string, bool) {
	if field == "" {
		return "", false
	}
	for _, c := range v.Columns {
		if c.Field() == field {
			return c.Name, true
		}
	}
	return "", false
}

func optional(f *float64, format string) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf(format, *f)
}
