package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	assert.GreaterOrEqual(t, timer.Duration(), 20*time.Millisecond)
}

func TestTimerObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_timer_seconds",
		Help: "test",
	})

	NewTimer().ObserveDuration(h)

	require.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestSelectionToggleCounter(t *testing.T) {
	before := testutil.ToFloat64(SelectionToggles.WithLabelValues("quota_noop"))
	SelectionToggles.WithLabelValues("quota_noop").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(SelectionToggles.WithLabelValues("quota_noop")))
}
