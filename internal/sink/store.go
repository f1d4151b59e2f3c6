package sink

import (
	"context"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

// EnrollmentWriter is the write side of an enrollment repository.
type EnrollmentWriter interface {
	Insert(ctx context.Context, enrollment domain.Enrollment) error
}

// StoreSink adapts a repository to the Sink interface. A nil writer disables it.
type StoreSink struct {
	name   string
	writer EnrollmentWriter
}

// NewStoreSink names a repository-backed sink.
func NewStoreSink(name string, writer EnrollmentWriter) *StoreSink {
	return &StoreSink{name: name, writer: writer}
}

func (s *StoreSink) Name() string { return s.name }

func (s *StoreSink) Enabled() bool { return s.writer != nil }

func (s *StoreSink) Deliver(ctx context.Context, enrollment domain.Enrollment) error {
	return s.writer.Insert(ctx, enrollment)
}
