package transport

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"codeberg.org/okkola/labdaq/internal/errors"
)

func init() {
	Register("sim", func(cfg Config) (Transport, error) {
		return NewSim(noiseResponder(cfg.Address)), nil
	})
}

// Responder computes the scripted reply for one command.
type Responder func(cmd string) (string, error)

// Sim is an in-memory transport for hardware-less operation and tests. Every
// exchange is answered by a responder; tests can additionally inject a fixed
// number of failures to exercise retry and isolation behavior.
type Sim struct {
	mu        sync.Mutex
	responder Responder
	failures  int
	closed    bool
	exchanges int
}

// NewSim builds a sim transport around the given responder.
func NewSim(responder Responder) *Sim {
	return &Sim{responder: responder}
}

// FailNext makes the next n exchanges fail with a transport error before
// normal operation resumes.
func (s *Sim) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Exchanges returns how many exchanges completed (including failed ones).
func (s *Sim) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

func (s *Sim) Exchange(ctx context.Context, cmd string) (string, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errFactory.New(ErrClosed)
	}
	s.exchanges++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return "", errFactory.WithData(ErrExchangeFailed, "injected failure")
	}
	responder := s.responder
	s.mu.Unlock()

	return responder(cmd)
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// noiseResponder emulates a generic instrument: any query is answered with a
// small random walk around a per-channel baseline, so a session against sim
// devices produces plausible moving traces.
func noiseResponder(seedAddr string) Responder {
	var seed int64
	for _, r := range seedAddr {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	var mu sync.Mutex
	baselines := make(map[string]float64)

	return func(cmd string) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		key := strings.TrimSpace(cmd)
		base, ok := baselines[key]
		if !ok {
			base = rng.Float64() * 5
		}
		base += (rng.Float64() - 0.5) * 0.01
		baselines[key] = base

		return fmt.Sprintf("%.6f", base), nil
	}
}
