package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeWriter struct {
	puts map[string][]byte
	err  error
}

func (f *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[path] = body
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	content := []byte("timestamp,market_slug\n1700000000,btc-updown\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	w := &fakeWriter{}
	a := NewArchiver(w, path, testLogger())
	a.now = func() time.Time { return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) }

	if err := a.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}

	got, ok := w.puts["archive/trades/2026-08-24.csv"]
	if !ok {
		t.Fatalf("uploaded keys: %v", keysOf(w.puts))
	}
	if string(got) != string(content) {
		t.Errorf("uploaded body = %q", got)
	}
}

func TestUploadOnceSkipsMissingAndEmpty(t *testing.T) {
	w := &fakeWriter{}
	dir := t.TempDir()

	a := NewArchiver(w, filepath.Join(dir, "absent.csv"), testLogger())
	if err := a.UploadOnce(context.Background()); err != nil {
		t.Errorf("missing file must not error: %v", err)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	a = NewArchiver(w, empty, testLogger())
	if err := a.UploadOnce(context.Background()); err != nil {
		t.Errorf("empty file must not error: %v", err)
	}

	if len(w.puts) != 0 {
		t.Errorf("unexpected uploads: %v", keysOf(w.puts))
	}
}

func TestUploadOnceReportsPutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewArchiver(&fakeWriter{err: errors.New("bucket gone")}, path, testLogger())
	if err := a.UploadOnce(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a := NewArchiver(&fakeWriter{}, filepath.Join(t.TempDir(), "t.csv"), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
}

// ctxWriter refuses uploads on a cancelled context, like the real client.
type ctxWriter struct {
	fakeWriter
}

func (c *ctxWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakeWriter.Put(ctx, path, data, contentType)
}

func TestRunUploadsOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := os.WriteFile(path, []byte("timestamp\n1700000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := &ctxWriter{}
	a := NewArchiver(w, path, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	// The in-loop upload fails on the cancelled context; only the shutdown
	// upload, which runs detached, can have landed.
	if len(w.puts) != 1 {
		t.Errorf("uploads = %v, want exactly the shutdown upload", keysOf(w.puts))
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
