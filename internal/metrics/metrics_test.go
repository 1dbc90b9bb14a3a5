package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.Event(FeedStream, "purchase")
	r.Event(FeedStream, "purchase")
	r.Event(FeedBatch, "befriend")
	r.Skipped(FeedStream, "not_object")
	r.Classified(3, 5, true, true)
	r.Classified(1, 1, false, false)
	r.Users(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues(FeedStream, "purchase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues(FeedBatch, "befriend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped.WithLabelValues(FeedStream, "not_object")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flagged))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.insufficientHistory))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.users))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Classified(1, 2, true, true)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.flagged))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Classified(2, 2, true, true)
	r.FeedDuration(FeedBatch, 1500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "detect.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "purchasewatch_flagged_purchases_total 1")
	assert.Contains(t, string(data), `purchasewatch_feed_duration_seconds{feed="batch"} 1.5`)
}
