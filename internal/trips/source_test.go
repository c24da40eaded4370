package trips

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

// readAll drains src in chunks of chunkSize.
func readAll(src Source, chunkSize int) ([]Record, error) {
	var all []Record
	for {
		recs, err := src.Next(chunkSize)
		all = append(all, recs...)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

type yellowFixture struct {
	Pickup   time.Time `parquet:"tpep_pickup_datetime,timestamp(microsecond)"`
	Dropoff  time.Time `parquet:"tpep_dropoff_datetime,timestamp(microsecond)"`
	PU       int64     `parquet:"PULocationID"`
	Distance *float64  `parquet:"trip_distance"`
	Fare     float64   `parquet:"fare_amount"`
	Flag     string    `parquet:"store_and_fwd_flag"`
}

func TestParquetSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2019-01.parquet")
	dist := 2.5
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []yellowFixture{
		{Pickup: start, Dropoff: start.Add(30 * time.Minute), PU: 1, Distance: &dist, Fare: 9, Flag: "N"},
		{Pickup: start.Add(time.Hour), Dropoff: start.Add(2 * time.Hour), PU: 2, Fare: 12, Flag: "Y"},
		{Pickup: start.Add(2 * time.Hour), Dropoff: start.Add(3 * time.Hour), PU: 3, Distance: &dist, Fare: 15, Flag: "N"},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	first, err := src.Next(2)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first chunk = %d records, want 2", len(first))
	}

	rest, err := readAll(src, 2)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("rest = %d records, want 1", len(rest))
	}

	r := first[0]
	if got, ok := r["tpep_pickup_datetime"].(time.Time); !ok || !got.Equal(start) {
		t.Errorf("pickup = %v, want %v", r["tpep_pickup_datetime"], start)
	}
	if r["PULocationID"] != int64(1) {
		t.Errorf("PULocationID = %v (%T), want 1", r["PULocationID"], r["PULocationID"])
	}
	if r["trip_distance"] != 2.5 {
		t.Errorf("trip_distance = %v, want 2.5", r["trip_distance"])
	}
	if r["store_and_fwd_flag"] != "N" {
		t.Errorf("store_and_fwd_flag = %v, want N", r["store_and_fwd_flag"])
	}
	if first[1]["trip_distance"] != nil {
		t.Errorf("null trip_distance = %v, want nil", first[1]["trip_distance"])
	}

	if _, err := src.Next(2); !errors.Is(err, io.EOF) {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fhv_tripdata_2019-01.csv")
	data := "\xef\xbb\xbfdispatching_base_num,pickup_datetime,dropOff_datetime,PUlocationID\n" +
		"B00001,2019-01-01 00:30:00,2019-01-01 00:45:00,264\n" +
		"B00002,2019-01-01 01:00:00,,\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	recs, err := readAll(src, 1)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0]["dispatching_base_num"] != "B00001" {
		t.Errorf("BOM not stripped: %v", recs[0])
	}
	if recs[1]["dropOff_datetime"] != nil {
		t.Errorf("empty cell = %v, want nil", recs[1]["dropOff_datetime"])
	}

	v, _ := VariantFor(filepath.Base(path), DefaultVariants())
	trips := Clean(recs, v)
	if len(trips) != 1 {
		t.Fatalf("Clean = %d trips, want 1", len(trips))
	}
	if trips[0].Duration != 0.25 {
		t.Errorf("Duration = %v, want 0.25", trips[0].Duration)
	}
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	if _, err := Open("data/readme.txt"); err == nil {
		t.Error("Open(.txt) should fail")
	}
}
