package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
)

type fakeSink struct {
	name    string
	enabled bool
	err     error
	panics  bool
	got     []domain.Enrollment
}

func (f *fakeSink) Name() string  { return f.name }
func (f *fakeSink) Enabled() bool { return f.enabled }
func (f *fakeSink) Deliver(_ context.Context, e domain.Enrollment) error {
	if f.panics {
		panic("relay exploded")
	}
	f.got = append(f.got, e)
	return f.err
}

var ada = domain.Enrollment{ID: "e-1", Name: "Ada Lovelace", Email: "ada@example.com", RefreshToken: "abcd1234efgh5678"}

func TestFanOutIsolatesFailures(t *testing.T) {
	email := &fakeSink{name: "email", enabled: true, err: errors.New("relay unreachable")}
	csvSink := &fakeSink{name: "csv", enabled: true}
	store := &fakeSink{name: "sqlite", enabled: true}
	metrics := observability.NewMetrics()

	results := NewFanOut(zap.NewNop(), metrics, email, csvSink, store).Deliver(context.Background(), ada)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"email", "csv", "sqlite"}, []string{results[0].Sink, results[1].Sink, results[2].Sink})
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusDelivered, results[1].Status)
	assert.Equal(t, StatusDelivered, results[2].Status)
	assert.Equal(t, []domain.Enrollment{ada}, csvSink.got)
	assert.Equal(t, []domain.Enrollment{ada}, store.got)

	assert.Len(t, results.Failed(), 1)
	assert.Len(t, results.Delivered(), 2)
	assert.ErrorContains(t, results.Err(), "email: relay unreachable")
	assert.Equal(t, map[string]any{"email": "failed", "csv": "delivered", "sqlite": "delivered"}, results.Summary())
	assert.Equal(t, int64(1), metrics.Snapshot().Sinks["email|failed"])
}

func TestFanOutSkipsDisabledSinks(t *testing.T) {
	disabled := &fakeSink{name: "email"}
	enabled := &fakeSink{name: "csv", enabled: true}

	results := NewFanOut(zap.NewNop(), nil, disabled, enabled).Deliver(context.Background(), ada)

	status, ok := results.Status("email")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, status)
	assert.Empty(t, disabled.got)
	assert.NoError(t, results.Err())
}

func TestFanOutRecoversPanics(t *testing.T) {
	bad := &fakeSink{name: "email", enabled: true, panics: true}
	good := &fakeSink{name: "csv", enabled: true}

	results := NewFanOut(zap.NewNop(), nil, bad, good).Deliver(context.Background(), ada)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorContains(t, results[0].Err, "relay exploded")
	assert.Equal(t, StatusDelivered, results[1].Status)
}

func TestStoreSinkDisabledWithoutWriter(t *testing.T) {
	s := NewStoreSink("sqlite", nil)
	assert.Equal(t, "sqlite", s.Name())
	assert.False(t, s.Enabled())
}
