package service

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/annnsvm/contactsd/internal/clients"
)

type prober interface {
	Probe(ctx context.Context) clients.ProbeResult
}

// Health aggregates dependency probes for the health endpoints and tracks
// whether startup has completed.
type Health struct {
	probes map[string]prober
	ready  atomic.Bool
}

func NewHealth(probes map[string]prober) *Health {
	return &Health{probes: probes}
}

// NewInfraHealth wires the standard dependency set.
func NewInfraHealth(pg, redis, nats prober) *Health {
	return NewHealth(map[string]prober{
		"postgres": pg,
		"redis":    redis,
		"nats":     nats,
	})
}

// DeepCheck probes every dependency concurrently and returns a map of
// dependency name to probe result.
func (h *Health) DeepCheck(ctx context.Context) map[string]clients.ProbeResult {
	results := make(map[string]clients.ProbeResult, len(h.probes))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range h.probes {
		g.Go(func() error {
			probe := p.Probe(ctx)
			mu.Lock()
			results[name] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Healthy reports whether every dependency probe passed.
func (h *Health) Healthy(ctx context.Context) bool {
	for _, probe := range h.DeepCheck(ctx) {
		if !probe.OK {
			return false
		}
	}
	return true
}

// MarkReady flips the readiness flag once startup has finished.
func (h *Health) MarkReady() {
	h.ready.Store(true)
}

// Ready reports whether startup completed: the database answered its
// readiness poll and migrations ran.
func (h *Health) Ready() bool {
	return h.ready.Load()
}
