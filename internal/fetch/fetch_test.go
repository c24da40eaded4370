package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher(listingURL string) *Fetcher {
	return NewFetcher(Options{
		ListingURL:  listingURL,
		BaseURL:     "https://www.nyc.gov",
		Extension:   ".parquet",
		MaxAttempts: 10,
		Backoff:     Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond},
		Timeout:     time.Second,
	}, testLogger())
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 2 * time.Second, Max: 60 * time.Second}
	want := []time.Duration{2, 4, 8, 16, 32, 60, 60, 60, 60}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w*time.Second {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w*time.Second)
		}
	}
}

const listingPage = `<html><body>
<ul>
  <li><a href="https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2019-01.parquet">Yellow</a></li>
  <li><a href="/assets/tlc/green_tripdata_2019-01.parquet ">Green</a></li>
  <li><a href="https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2020-01.parquet">Yellow 2020</a></li>
  <li><a href="/assets/tlc/data_dictionary_2019.pdf">Dictionary</a></li>
  <li><a>no href</a></li>
  <li><a href="https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2019-01.parquet">Yellow again</a></li>
</ul>
</body></html>`

func TestDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	got, err := testFetcher(srv.URL).Discover(context.Background(), 2019)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		"https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2019-01.parquet",
		"https://www.nyc.gov/assets/tlc/green_tripdata_2019-01.parquet",
		"https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2019-01.parquet",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscover_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testFetcher(srv.URL).Discover(context.Background(), 2019)
	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("Discover error = %v, want *DiscoveryError", err)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("wrapped error = %v, want HTTP 503", de.Err)
	}
}

func TestFilterLinks(t *testing.T) {
	base, _ := url.Parse("https://www.nyc.gov")
	tests := []struct {
		href string
		want string
	}{
		{"/trip-data/fhv_tripdata_2019-05.parquet", "https://www.nyc.gov/trip-data/fhv_tripdata_2019-05.parquet"},
		{"https://cdn.example/fhvhv_tripdata_2019-05.parquet", "https://cdn.example/fhvhv_tripdata_2019-05.parquet"},
		{"fhv_tripdata_2019-05.parquet", "fhv_tripdata_2019-05.parquet"},
		{"/trip-data/fhv_tripdata_2018-05.parquet", ""},
		{"/trip-data/fhv_tripdata_2019-05.csv", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got := filterLinks([]string{tt.href}, "2019", ".parquet", base)
			var want []string
			if tt.want != "" {
				want = []string{tt.want}
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("filterLinks(%q) = %v, want %v", tt.href, got, want)
			}
		})
	}
}

func TestDownload_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 9 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "PAR1 payload")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "yellow_tripdata_2019-01.parquet")
	if err := testFetcher("").Download(context.Background(), srv.URL+"/yellow_tripdata_2019-01.parquet", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n := hits.Load(); n != 10 {
		t.Errorf("requests = %d, want 10", n)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "PAR1 payload" {
		t.Errorf("file = %q, want %q", data, "PAR1 payload")
	}
}

func TestDownload_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "green_tripdata_2019-01.parquet")
	err := testFetcher("").Download(context.Background(), srv.URL+"/green_tripdata_2019-01.parquet", dest)

	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Download error = %v, want wrapped HTTP 500", err)
	}
	if n := hits.Load(); n != 10 {
		t.Errorf("requests = %d, want 10", n)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("destination should not exist after failure, stat = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %d", len(entries))
	}
}

func TestDownload_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := testFetcher("")
	f.backoff = Backoff{Initial: time.Hour, Max: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.Download(ctx, srv.URL+"/x.parquet", filepath.Join(t.TempDir(), "x.parquet"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Download error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDownload_StalledBodyIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("PAR1"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	f := testFetcher("")
	f.maxAttempts = 2
	f.readTimeout = 100 * time.Millisecond

	dir := t.TempDir()
	start := time.Now()
	err := f.Download(context.Background(), srv.URL+"/x.parquet", filepath.Join(dir, "x.parquet"))
	elapsed := time.Since(start)

	if !errors.Is(err, errStalled) {
		t.Fatalf("Download error = %v, want errStalled", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Download took %s, want the stall cut off near the read timeout", elapsed)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (stall retried)", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %d", len(entries))
	}
}

func TestIdleReader_SlowButSteadyBody(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(30 * time.Millisecond)
			pw.Write([]byte("chunk"))
		}
		pw.Close()
	}()

	var cancelled atomic.Bool
	r := newIdleReader(pr, 100*time.Millisecond, func() { cancelled.Store(true) })
	defer r.stop()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 25 {
		t.Errorf("read %d bytes, want 25", len(data))
	}
	if cancelled.Load() {
		t.Error("steady body was cancelled")
	}
}

func TestDownloadAll_SkipsExistingFiles(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, r.URL.Path)
	}))
	defer srv.Close()

	urls := []string{
		srv.URL + "/trip-data/yellow_tripdata_2019-01.parquet",
		srv.URL + "/trip-data/green_tripdata_2019-01.parquet?token=abc",
	}
	dir := filepath.Join(t.TempDir(), "data")
	f := testFetcher("")

	sum, err := f.DownloadAll(context.Background(), urls, dir)
	if err != nil {
		t.Fatalf("first DownloadAll: %v", err)
	}
	if sum.Downloaded != 2 || hits.Load() != 2 {
		t.Fatalf("first run = %+v with %d requests, want 2 downloads", sum, hits.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, "green_tripdata_2019-01.parquet")); err != nil {
		t.Errorf("green file missing: %v", err)
	}

	sum, err = f.DownloadAll(context.Background(), urls, dir)
	if err != nil {
		t.Fatalf("second DownloadAll: %v", err)
	}
	if sum.Skipped != 2 || sum.Downloaded != 0 {
		t.Errorf("second run = %+v, want 2 skipped", sum)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("requests after second run = %d, want 2", n)
	}
}

func TestDownloadAll_ContinuesAfterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.parquet" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := testFetcher("")
	f.maxAttempts = 2
	dir := t.TempDir()

	sum, err := f.DownloadAll(context.Background(), []string{
		srv.URL + "/missing.parquet",
		srv.URL + "/present.parquet",
	}, dir)
	if err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}
	if sum.Failed != 1 || sum.Downloaded != 1 {
		t.Errorf("summary = %+v, want 1 failed 1 downloaded", sum)
	}
	if _, err := os.Stat(filepath.Join(dir, "present.parquet")); err != nil {
		t.Errorf("present.parquet missing: %v", err)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://cdn.example/trip-data/yellow_tripdata_2019-01.parquet", "yellow_tripdata_2019-01.parquet"},
		{"https://cdn.example/a/b.parquet?x=1", "b.parquet"},
		{"b.parquet", "b.parquet"},
	}
	for _, tt := range tests {
		if got := FileName(tt.in); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
