// Package sink delivers finalized enrollments to their independent destinations.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
)

// Status is the outcome of one sink for one enrollment.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Sink is a persistence or notification destination for enrollments.
// Sinks always receive unredacted values.
type Sink interface {
	Name() string
	// Enabled reports whether the sink has an activation target configured.
	Enabled() bool
	Deliver(ctx context.Context, enrollment domain.Enrollment) error
}

// Result records what happened to one sink.
type Result struct {
	Sink   string
	Status Status
	Err    error
}

// Results are ordered like the registered sinks.
type Results []Result

// Failed returns the results of sinks that were attempted and failed.
func (r Results) Failed() Results {
	return r.filter(StatusFailed)
}

// Delivered returns the results of sinks that accepted the enrollment.
func (r Results) Delivered() Results {
	return r.filter(StatusDelivered)
}

// Status looks up the outcome of a sink by name.
func (r Results) Status(name string) (Status, bool) {
	for _, res := range r {
		if res.Sink == name {
			return res.Status, true
		}
	}
	return "", false
}

// Err joins the errors of failed sinks, or returns nil.
func (r Results) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Sink, res.Err))
	}
	return errors.Join(errs...)
}

// Summary maps sink names to their status, suitable for error details.
func (r Results) Summary() map[string]any {
	summary := make(map[string]any, len(r))
	for _, res := range r {
		summary[res.Sink] = string(res.Status)
	}
	return summary
}

func (r Results) filter(status Status) Results {
	var out Results
	for _, res := range r {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}

// FanOut attempts every registered sink in registration order. A failing or
// panicking sink never prevents the following sinks from running.
type FanOut struct {
	mu      sync.RWMutex
	sinks   []Sink
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewFanOut creates a fan-out over sinks.
func NewFanOut(logger *zap.Logger, metrics *observability.Metrics, sinks ...Sink) *FanOut {
	f := &FanOut{logger: logger, metrics: metrics}
	f.Register(sinks...)
	return f
}

// Register appends sinks; nil entries are ignored.
func (f *FanOut) Register(sinks ...Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
}

// Deliver runs each sink once, sequentially, and collects every outcome.
func (f *FanOut) Deliver(ctx context.Context, enrollment domain.Enrollment) Results {
	f.mu.RLock()
	sinks := append([]Sink{}, f.sinks...)
	f.mu.RUnlock()

	results := make(Results, 0, len(sinks))
	for _, s := range sinks {
		res := Result{Sink: s.Name(), Status: StatusSkipped}
		if s.Enabled() {
			if err := f.attempt(ctx, s, enrollment); err != nil {
				res.Status = StatusFailed
				res.Err = err
				f.logger.Error("sink delivery failed",
					zap.String("enrollment_id", enrollment.ID),
					zap.String("sink", res.Sink),
					zap.Error(err))
			} else {
				res.Status = StatusDelivered
				f.logger.Info("sink delivered",
					zap.String("enrollment_id", enrollment.ID),
					zap.String("sink", res.Sink))
			}
		} else {
			f.logger.Debug("sink disabled", zap.String("sink", res.Sink))
		}
		f.metrics.RecordSink(res.Sink, string(res.Status))
		results = append(results, res)
	}
	return results
}

func (f *FanOut) attempt(ctx context.Context, s Sink, enrollment domain.Enrollment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Deliver(ctx, enrollment)
}
