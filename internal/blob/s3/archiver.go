package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ObjectWriter is the upload surface the archiver needs. Satisfied by Writer;
// tests provide fakes.
type ObjectWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver periodically uploads the CSV trade log so the trading host is not
// the only copy. Uploads are best-effort: failures are logged and the next
// tick retries with the full file.
type Archiver struct {
	writer  ObjectWriter
	logFile string
	logger  *slog.Logger

	now func() time.Time
}

// NewArchiver creates an Archiver for the given trade-log path.
func NewArchiver(writer ObjectWriter, logFile string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		logFile: logFile,
		logger:  logger.With(slog.String("component", "s3_archiver")),
		now:     time.Now,
	}
}

// Run uploads the trade log every interval until ctx is cancelled. One upload
// happens immediately on start so a fresh deployment archives whatever the
// previous run left behind, and one more on shutdown so the final trades of
// the session are not lost to the interval.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := a.UploadOnce(ctx); err != nil {
			a.logger.Warn("trade log archive failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			a.uploadFinal()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// uploadFinal runs the shutdown upload on a detached context; the run context
// is already cancelled by the time we get here.
func (a *Archiver) uploadFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.UploadOnce(ctx); err != nil {
		a.logger.Warn("final trade log archive failed", slog.String("error", err.Error()))
	}
}

// UploadOnce uploads the current trade log. A missing or empty log file is
// not an error; there is simply nothing to archive yet.
func (a *Archiver) UploadOnce(ctx context.Context) error {
	data, err := os.ReadFile(a.logFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("s3blob: read trade log: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	key := a.archiveKey()
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "text/csv"); err != nil {
		return err
	}

	a.logger.Info("trade log archived",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// archiveKey partitions uploads by UTC day; repeated uploads within one day
// overwrite the same object with a fresher copy.
func (a *Archiver) archiveKey() string {
	return fmt.Sprintf("archive/trades/%s.csv", a.now().UTC().Format("2006-01-02"))
}
