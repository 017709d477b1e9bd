package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSessionMetricsIsSafe(t *testing.T) {
	Reset()
	m := NewSessionMetrics()
	require.Nil(t, m)
	m.ObserveCall("Get-Jobs", "ok", time.Millisecond)
	m.RecordRetry()
	m.RecordChallenge("answered")
	m.SetOpen(3)
}

func TestSessionMetricsRecords(t *testing.T) {
	InitRegistry()
	defer Reset()

	m := NewSessionMetrics()
	require.NotNil(t, m)
	m.ObserveCall("Get-Jobs", "ok", 2*time.Millisecond)
	m.ObserveCall("Get-Jobs", "ok", 3*time.Millisecond)
	m.ObserveCall("CUPS-Delete-Printer", "protocol", time.Millisecond)
	m.RecordRetry()
	m.SetOpen(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("Get-Jobs", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("CUPS-Delete-Printer", "protocol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.open))
}

func TestSessionMetricsShared(t *testing.T) {
	InitRegistry()
	defer Reset()

	a := NewSessionMetrics()
	b := NewSessionMetrics()
	assert.Same(t, a, b)

	InitRegistry()
	c := NewSessionMetrics()
	assert.NotSame(t, a, c)
}
