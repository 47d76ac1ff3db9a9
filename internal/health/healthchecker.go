package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is the common surface of component-level checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds the component checkers into one flag the
// health endpoint and the startup gate read.
type ServiceHealthChecker struct {
	healthy atomic.Int32
	deps    []HealthChecker
	log     zerolog.Logger
}

// NewServiceHealthChecker starts unhealthy until the first evaluation.
func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	h := &ServiceHealthChecker{deps: deps, log: log}
	h.healthy.Store(0)
	return h
}

// IsHealthy reports the cached aggregate state.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() == 1 }

// Start re-evaluates the components every interval until ctx is cancelled,
// logging only on transitions.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(0)
	eval := func() {
		next := int32(1)
		for _, c := range h.deps {
			if !c.IsHealthy() {
				next = 0
				break
			}
		}
		h.healthy.Store(next)
		if next != prev {
			if next == 1 {
				h.log.Info().Msg("service healthy")
			} else {
				h.log.Error().Stack().Msg("service unhealthy")
			}
			prev = next
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
