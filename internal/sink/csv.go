package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

var csvHeader = []string{"Name", "Email", "Refresh Token"}

// fileLocks serialises appends per path within the process.
var fileLocks sync.Map

// CSVSink appends enrollments to a flat file, one row each. The header row is
// written when the file is created (or found empty). Rows are never rewritten.
type CSVSink struct {
	path string
}

// NewCSVSink returns a sink writing to path. An empty path disables it.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Enabled() bool { return s.path != "" }

func (s *CSVSink) Deliver(ctx context.Context, enrollment domain.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock, _ := fileLocks.LoadOrStore(s.path, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if info.Size() == 0 {
		_ = w.Write(csvHeader)
	}
	_ = w.Write([]string{enrollment.Name, enrollment.Email, enrollment.RefreshToken})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	return f.Close()
}
