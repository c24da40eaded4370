package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"
)

// chunkSize bounds the memory used while streaming a body to disk.
const chunkSize = 32 * 1024

// Backoff is an exponential delay schedule without jitter.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait after the given failed attempt (1-based): Initial,
// doubled for each further attempt, capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt; i++ {
		if d >= b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Summary counts the outcome of a DownloadAll run.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Download streams url into dest, retrying any failure with exponential
// backoff. The body goes to a temporary file next to dest which is renamed
// only once complete, so an existing dest is always a whole file.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		f.logger.Info("downloading file", "url", rawURL, "attempt", attempt)

		start := time.Now()
		written, err := f.downloadOnce(ctx, rawURL, dest)
		if err == nil {
			f.logger.Info("file downloaded",
				"file", filepath.Base(dest),
				"size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
				"duration", time.Since(start).Round(time.Millisecond),
			)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err
		if attempt == f.maxAttempts {
			break
		}

		delay := f.backoff.Delay(attempt)
		f.logger.Warn("download attempt failed",
			"url", rawURL, "attempt", attempt, "retry_in", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("download %s: giving up after %d attempts: %w", rawURL, f.maxAttempts, lastErr)
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	body := newIdleReader(resp.Body, f.readTimeout, cancel)
	defer body.stop()

	written, err := io.CopyBuffer(tmp, body, make([]byte, chunkSize))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return written, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return written, fmt.Errorf("rename into place: %w", err)
	}
	return written, nil
}

// errStalled reports a response body that sent nothing for a whole read
// timeout.
var errStalled = errors.New("read stalled")

// idleReader cancels the request when no Read makes progress within timeout.
// The deadline restarts after every read, so large bodies are not cut off.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.stalled.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if ir.stalled.Load() {
		return n, fmt.Errorf("%w for %s", errStalled, ir.timeout)
	}
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() { ir.timer.Stop() }

// DownloadAll downloads each URL into dir in order, naming files by the last
// path segment. Files already present are skipped. A failed file is logged
// and the batch continues; only a directory error or cancellation aborts.
func (f *Fetcher) DownloadAll(ctx context.Context, urls []string, dir string) (Summary, error) {
	var sum Summary
	if err := os.MkdirAll(dir, 0755); err != nil {
		return sum, fmt.Errorf("create dir: %w", err)
	}

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		name := FileName(u)
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			f.logger.Info("file already exists, skipping", "file", name)
			sum.Skipped++
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Error("stat destination", "file", name, "error", err)
			sum.Failed++
			continue
		}

		if err := f.Download(ctx, u, dest); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			f.logger.Error("failed to download file", "file", name, "error", err)
			sum.Failed++
			continue
		}
		sum.Downloaded++
	}

	f.logger.Info("download batch complete",
		"downloaded", sum.Downloaded, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// FileName returns the last path segment of a URL, ignoring any query.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
