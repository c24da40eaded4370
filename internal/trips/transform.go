package trips

import (
	"sort"
	"time"
)

// Clean parses the pickup and dropoff timestamps of each record, drops rows
// where either is missing or unparseable, derives trip_duration and avg_speed
// and projects the row onto the variant's columns. Input order is preserved.
func Clean(records []Record, v *Variant) []Trip {
	out := make([]Trip, 0, len(records))
	for _, r := range records {
		t, ok := cleanRecord(r, v)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func cleanRecord(r Record, v *Variant) (Trip, bool) {
	pickup, ok := parseTime(r[v.PickupField])
	if !ok {
		return Trip{}, false
	}
	dropoff, ok := parseTime(r[v.DropoffField])
	if !ok {
		return Trip{}, false
	}

	t := Trip{
		Pickup:   pickup,
		Dropoff:  dropoff,
		Duration: v.DurationUnit.Of(dropoff.Sub(pickup)),
	}

	if v.FareField != "" {
		if fare, ok := toFloat(r[v.FareField]); ok {
			t.Fare = &fare
		}
	}
	if v.RequireFare && t.Fare == nil {
		return Trip{}, false
	}

	if v.DistanceField != "" {
		if dist, ok := toFloat(r[v.DistanceField]); ok {
			t.Distance = &dist
			if t.Duration != 0 {
				speed := dist / t.Duration
				t.AvgSpeed = &speed
			}
		}
	}

	t.Values = project(r, v, &t)
	return t, true
}

func project(r Record, v *Variant, t *Trip) []any {
	values := make([]any, len(v.Columns))
	for i, c := range v.Columns {
		switch {
		case c.Name == DurationColumn:
			values[i] = t.Duration
		case c.Name == SpeedColumn:
			if t.AvgSpeed != nil {
				values[i] = *t.AvgSpeed
			}
		case c.Field() == v.PickupField:
			values[i] = t.Pickup
		case c.Field() == v.DropoffField:
			values[i] = t.Dropoff
		default:
			values[i] = coerce(r[c.Field()], c.Type)
		}
	}
	return values
}

// Aggregator accumulates daily summaries across several batches of trips.
type Aggregator struct {
	hasFare bool
	days    map[time.Time]*dayTotals
}

type dayTotals struct {
	trips   int
	fareSum float64
	fareN   int
}

// NewAggregator creates an Aggregator for trips of variant v.
func NewAggregator(v *Variant) *Aggregator {
	return &Aggregator{
		hasFare: v.FareField != "",
		days:    make(map[time.Time]*dayTotals),
	}
}

// Add folds trips into the running totals. Days are keyed on the calendar
// date of the pickup timestamp in its own location.
func (a *Aggregator) Add(trips []Trip) {
	for i := range trips {
		p := trips[i].Pickup
		day := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := a.days[day]
		if !ok {
			d = &dayTotals{}
			a.days[day] = d
		}
		d.trips++
		if trips[i].Fare != nil {
			d.fareSum += *trips[i].Fare
			d.fareN++
		}
	}
}

// Summaries returns one entry per day, oldest first.
func (a *Aggregator) Summaries() []DailySummary {
	out := make([]DailySummary, 0, len(a.days))
	for day, d := range a.days {
		s := DailySummary{Date: day, Trips: d.trips}
		if a.hasFare && d.fareN > 0 {
			avg := d.fareSum / float64(d.fareN)
			s.AvgFare = &avg
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// DailyAggregate groups trips by pickup date and returns the trip count and
// mean fare per day.
func DailyAggregate(trips []Trip, v *Variant) []DailySummary {
	a := NewAggregator(v)
	a.Add(trips)
	return a.Summaries()
}
