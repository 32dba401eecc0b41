package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveTask("save", 20*time.Millisecond, true)
	c.ObserveTask("save", time.Millisecond, false)
	c.ObserveTask("load", time.Millisecond, true)
	c.SetQueueDepth(3)
	c.AddActors(ActorsRespawned, 2)
	c.AddActors(ActorsRespawned, 0)
	c.ObserveFile("write", 4096)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskTotal.WithLabelValues("save", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskTotal.WithLabelValues("save", StatusFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actors.WithLabelValues(ActorsRespawned)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.fileBytes))
}

func TestCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.SetQueueDepth(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(second.queueDepth))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveTask("save", time.Second, true)
	c.SetQueueDepth(1)
	c.ObserveFile("read", 1)
	c.AddActors(ActorsSkipped, 1)
}
