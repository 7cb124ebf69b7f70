package sensors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

// Prober talks to a sensor and returns a temperature reading.
type Prober interface {
	Probe(ctx context.Context, s *types.Sensor) (float64, error)
}

// ErrNoResponse is the simulated failure.
var ErrNoResponse = errors.New("sensor did not respond")

// Simulated stands in for real device I/O: it succeeds with SuccessRate and
// reports a reading drawn uniformly from [Min, Max].
type Simulated struct {
	SuccessRate float64
	Min, Max    float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulated(successRate, lo, hi float64, seed int64) *Simulated {
	return &Simulated{
		SuccessRate: successRate,
		Min:         lo,
		Max:         hi,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *Simulated) Probe(ctx context.Context, _ *types.Sensor) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() >= s.SuccessRate {
		return 0, ErrNoResponse
	}
	return s.Min + s.rng.Float64()*(s.Max-s.Min), nil
}

// Router dispatches by communication kind and falls back to Default.
type Router struct {
	ByKind  map[types.CommKind]Prober
	Default Prober
}

func (r *Router) Probe(ctx context.Context, s *types.Sensor) (float64, error) {
	if p, ok := r.ByKind[s.Kind]; ok {
		return p.Probe(ctx, s)
	}
	if r.Default == nil {
		return 0, fmt.Errorf("no driver for %s sensors", s.Kind)
	}
	return r.Default.Probe(ctx, s)
}
