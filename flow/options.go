package flow

import (
	"log/slog"
	"time"

	"github.com/sagaflow/sagaflow-go/flow/emit"
	"github.com/sagaflow/sagaflow-go/flow/store"
)

// Option configures an Execute/Resume call's engine behavior via the
// functional-options pattern.
type Option[S State] func(*config[S]) error

type config[S State] struct {
	store                store.Store
	emitter              emit.Emitter
	metrics              *PrometheusMetrics
	logger               *slog.Logger
	maxConcurrentCeiling int
	backpressureTimeout  time.Duration
	defaultStepTimeout   time.Duration
	runWallClockBudget   time.Duration
	queueDepth           int
}

func defaultConfig[S State]() *config[S] {
	return &config[S]{
		store:   store.NewMemStore(),
		emitter: emit.NewNullEmitter(),
		logger:  slog.Default(),
	}
}

// WithStore sets the checkpoint persistence backend. If unset, every
// Execute/Resume call gets its own fresh in-memory store, so a Resume
// without WithStore never finds the checkpoints an earlier Execute wrote.
func WithStore[S State](s store.Store) Option[S] {
	return func(c *config[S]) error {
		c.store = s
		return nil
	}
}

// WithEmitter sets the observability backend events are published to.
// Defaults to a NullEmitter.
func WithEmitter[S State](e emit.Emitter) Option[S] {
	return func(c *config[S]) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus collector that the executor updates
// as it runs (inflight steps, queue depth, latency, retries, rollbacks).
func WithMetrics[S State](m *PrometheusMetrics) Option[S] {
	return func(c *config[S]) error {
		c.metrics = m
		return nil
	}
}

// WithLogger sets the slog.Logger the executor uses for its own
// ambient diagnostics (distinct from emitted Events, which go through
// the Emitter). Defaults to slog.Default().
func WithLogger[S State](logger *slog.Logger) Option[S] {
	return func(c *config[S]) error {
		if logger == nil {
			return nil
		}
		c.logger = logger
		return nil
	}
}

// WithMaxConcurrent caps the parallelism degree any single ForEach may
// use, regardless of what its definition declared. Zero (the default)
// means no ceiling: each ForEach uses exactly its declared degree.
func WithMaxConcurrent[S State](n int) Option[S] {
	return func(c *config[S]) error {
		if n < 1 {
			return ErrInvalidParallelism
		}
		c.maxConcurrentCeiling = n
		return nil
	}
}

// WithQueueDepth bounds how far a parallel ForEach may dispatch ahead of
// the contiguous run of settled items: once that many items are in flight
// or settled out of order, dispatch of new items waits. Zero means
// unbounded.
func WithQueueDepth[S State](n int) Option[S] {
	return func(c *config[S]) error {
		if n < 0 {
			return ErrInvalidParallelism
		}
		c.queueDepth = n
		return nil
	}
}

// WithBackpressureTimeout bounds how long a ForEach item waits to
// acquire a concurrency permit before the run fails with
// ErrBackpressureTimeout. Zero (the default) means wait indefinitely.
func WithBackpressureTimeout[S State](d time.Duration) Option[S] {
	return func(c *config[S]) error {
		c.backpressureTimeout = d
		return nil
	}
}

// WithDefaultStepTimeout sets the timeout applied to a Step that carries
// no Timeout modifier of its own. Zero (the default) means unlimited.
func WithDefaultStepTimeout[S State](d time.Duration) Option[S] {
	return func(c *config[S]) error {
		c.defaultStepTimeout = d
		return nil
	}
}

// WithRunWallClockBudget bounds the entire Execute/Resume call. When it
// elapses, the run's context is cancelled as if the caller had cancelled
// it directly. Zero (the default) means unlimited.
func WithRunWallClockBudget[S State](d time.Duration) Option[S] {
	return func(c *config[S]) error {
		c.runWallClockBudget = d
		return nil
	}
}
