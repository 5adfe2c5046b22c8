package operator

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable is returned by the simulated service on an injected failure.
var ErrUnavailable = errors.New("operator lookup service temporarily unavailable")

// SimulatedConfig controls the simulated lookup service.
type SimulatedConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64

	// Rand is optional; tests inject a seeded source for deterministic behavior.
	Rand *rand.Rand
}

func (c SimulatedConfig) withDefaults() SimulatedConfig {
	out := c
	if out.MinLatency < 0 {
		out.MinLatency = 0
	}
	if out.MaxLatency < out.MinLatency {
		out.MaxLatency = out.MinLatency
	}
	if out.FailureRate < 0 {
		out.FailureRate = 0
	}
	if out.FailureRate > 1 {
		out.FailureRate = 1
	}
	return out
}

// DefaultSimulatedConfig mirrors the production service profile: 100-300ms and ~5% failures.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		MinLatency:  100 * time.Millisecond,
		MaxLatency:  300 * time.Millisecond,
		FailureRate: 0.05,
	}
}

// Simulated is a stand-in for the external operator lookup service.
// It resolves numbers from a static country-prefix table; the call date is ignored.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(cfg SimulatedConfig) *Simulated {
	cfg = cfg.withDefaults()
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &Simulated{cfg: cfg, rnd: rnd}
}

func (s *Simulated) Lookup(ctx context.Context, number, _ string) (Info, error) {
	delay, fail := s.roll()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Info{}, ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return Info{}, ErrUnavailable
	}
	return resolvePrefix(number), nil
}

func (s *Simulated) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.cfg.MinLatency
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		delay += time.Duration(s.rnd.Int64N(int64(spread)))
	}
	return delay, s.rnd.Float64() < s.cfg.FailureRate
}

func resolvePrefix(number string) Info {
	switch {
	case strings.HasPrefix(number, "+1"):
		op := "Verizon"
		if strings.HasPrefix(number, "+14") {
			op = "AT&T"
		}
		return Info{Operator: op, Country: "United States", EstimatedCostPerMinute: 0.02}
	case strings.HasPrefix(number, "+44"):
		op := "Vodafone"
		if strings.HasPrefix(number, "+442") {
			op = "BT"
		}
		return Info{Operator: op, Country: "United Kingdom", EstimatedCostPerMinute: 0.05}
	case strings.HasPrefix(number, "+49"):
		return Info{Operator: "Deutsche Telekom", Country: "Germany", EstimatedCostPerMinute: 0.04}
	case strings.HasPrefix(number, "+33"):
		return Info{Operator: "Orange", Country: "France", EstimatedCostPerMinute: 0.045}
	default:
		return Info{Operator: "International Operator", Country: "Unknown", EstimatedCostPerMinute: 0.10}
	}
}
