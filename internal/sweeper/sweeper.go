package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	sweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_sweep_total",
		Help: "Total auto-decline sweep passes grouped by outcome.",
	}, []string{"result"})
	declinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_sweep_declined_total",
		Help: "Total reservations auto-declined by the sweep.",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_sweep_seconds",
		Help:    "Duration of one auto-decline sweep pass.",
		Buckets: prometheus.DefBuckets,
	})
)

// Lifecycle is the slice of the reservation service the sweeper drives.
type Lifecycle interface {
	AutoDeclinePending(ctx context.Context) (int, error)
}

// Config defines sweep tunables.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Sweeper periodically declines stale pending reservations. It owns only the
// cadence; the decline rule itself lives in the lifecycle service.
type Sweeper struct {
	svc    Lifecycle
	logger *zap.Logger
	cfg    Config
}

// New constructs a Sweeper.
func New(svc Lifecycle, logger *zap.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, logger: logger, cfg: cfg}
}

// Run sweeps on every tick until the context is cancelled. A failed pass is
// logged and retried on the next tick; there is no mid-sweep cancellation
// beyond the per-tick deadline.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	started := time.Now()
	declined, err := s.svc.AutoDeclinePending(tickCtx)
	sweepDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("auto-decline sweep failed", zap.Error(err), zap.Int("declined", declined))
		}
		sweepTotal.WithLabelValues("error").Inc()
		declinedTotal.Add(float64(declined))
		return
	}

	sweepTotal.WithLabelValues("ok").Inc()
	declinedTotal.Add(float64(declined))
	if declined > 0 {
		s.logger.Info("declined stale pending reservations", zap.Int("declined", declined))
	}
}
