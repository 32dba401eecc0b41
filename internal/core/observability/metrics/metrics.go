package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zeusave"

// Task outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Actor reconciliation outcomes.
const (
	ActorsSerialized = "serialized"
	ActorsMatched    = "matched"
	ActorsDestroyed  = "destroyed"
	ActorsRespawned  = "respawned"
	ActorsSkipped    = "skipped"
)

// Collector owns the save/load metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	taskDuration *prometheus.HistogramVec
	taskTotal    *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	fileBytes    *prometheus.HistogramVec
	actors       *prometheus.CounterVec
}

// NewCollector registers the collectors on reg. Collectors that are already registered
// on reg are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of save and load tasks from start to finish",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind", "status"}),
		taskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Finished save and load tasks by kind and status",
		}, []string{"kind", "status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Tasks waiting in or running at the head of the manager queue",
		}),
		fileBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_bytes",
			Help:      "Size of slot files written and read",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"op"}),
		actors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actors_total",
			Help:      "Actors processed by outcome",
		}, []string{"outcome"}),
	}

	if reg == nil {
		return c, nil
	}

	var err error
	c.taskDuration = register(reg, c.taskDuration, &err)
	c.taskTotal = register(reg, c.taskTotal, &err)
	c.queueDepth = register(reg, c.queueDepth, &err)
	c.fileBytes = register(reg, c.fileBytes, &err)
	c.actors = register(reg, c.actors, &err)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, errOut *error) T {
	if err := reg.Register(col); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		*errOut = errors.Join(*errOut, err)
	}
	return col
}

func (c *Collector) ObserveTask(kind string, took time.Duration, succeeded bool) {
	if c == nil {
		return
	}
	status := StatusFailure
	if succeeded {
		status = StatusSuccess
	}
	c.taskDuration.WithLabelValues(kind, status).Observe(took.Seconds())
	c.taskTotal.WithLabelValues(kind, status).Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collector) ObserveFile(op string, size int) {
	if c == nil {
		return
	}
	c.fileBytes.WithLabelValues(op).Observe(float64(size))
}

func (c *Collector) AddActors(outcome string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.actors.WithLabelValues(outcome).Add(float64(n))
}
