package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/config"
)

// Pool owns the per-protocol worker processes. Allocation and release are
// atomic with respect to the free-port computation: a single mutex guards
// the whole pool.
type Pool struct {
	configDir        string
	externalHostname string

	mu      sync.Mutex
	configs map[Protocol]*config.TransportConfig
	workers map[Protocol][]*Worker
}

func NewPool(configDir, externalHostname string) *Pool {
	return &Pool{
		configDir:        configDir,
		externalHostname: externalHostname,
		configs:          make(map[Protocol]*config.TransportConfig),
		workers:          make(map[Protocol][]*Worker),
	}
}

// Assign binds a session to a transport resource. Unmanaged protocols get
// the stub. For managed protocols the first free configured port is claimed
// (config order); with every port occupied the session piggybacks on the
// running worker with the fewest bound sessions, ties broken by lowest port.
func (p *Pool) Assign(protocol Protocol, sessionID string) (Transport, error) {
	if !protocol.IsExternal() {
		return Stub{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := p.configLocked(protocol)
	if err != nil {
		return nil, err
	}

	occupied := make(map[int]bool)
	for _, w := range p.workers[protocol] {
		if !w.Terminated() {
			occupied[w.Port] = true
		}
	}

	for _, pm := range cfg.PortMapping {
		if occupied[pm.Port] {
			continue
		}
		w := NewWorker(protocol, pm.Port, cfg, p.externalHostname)
		w.onExit = p.dropWorker
		w.Start()
		w.AddSession(sessionID)
		p.workers[protocol] = append(p.workers[protocol], w)
		sort.Slice(p.workers[protocol], func(i, j int) bool {
			return p.workers[protocol][i].Port < p.workers[protocol][j].Port
		})
		log.Info().Str("module", "transport.pool").Str("protocol", string(protocol)).
			Int("port", pm.Port).Str("session", sessionID).Msg("assigned new worker")
		return w, nil
	}

	// All ports occupied: least-loaded worker wins, list is port ordered.
	var best *Worker
	for _, w := range p.workers[protocol] {
		if w.Terminated() {
			continue
		}
		if best == nil || w.CountSessions() < best.CountSessions() {
			best = w
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no transport workers available for protocol %s", protocol)
	}

	best.AddSession(sessionID)
	log.Info().Str("module", "transport.pool").Str("protocol", string(protocol)).
		Int("port", best.Port).Str("session", sessionID).Int("sessions", best.CountSessions()).
		Msg("assigned shared worker")
	return best, nil
}

func (p *Pool) configLocked(protocol Protocol) (*config.TransportConfig, error) {
	if cfg, ok := p.configs[protocol]; ok {
		return cfg, nil
	}
	cfg, err := config.LoadTransportConfig(p.configDir, string(protocol))
	if err != nil {
		return nil, err
	}
	p.configs[protocol] = cfg
	return cfg, nil
}

// Release detaches a session from its transport and reclaims any worker
// left without sessions.
func (p *Pool) Release(t Transport, sessionID string) {
	if t == nil {
		return
	}
	t.RemoveSession(sessionID)
	p.Cleanup()
}

// Cleanup terminates and drops every worker with zero bound sessions.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for protocol, workers := range p.workers {
		kept := workers[:0]
		for _, w := range workers {
			if w.Terminated() {
				continue
			}
			if w.CountSessions() == 0 {
				log.Info().Str("module", "transport.pool").Str("protocol", string(protocol)).
					Int("port", w.Port).Msg("reclaiming idle worker")
				w.Destroy()
				continue
			}
			kept = append(kept, w)
		}
		p.workers[protocol] = kept
	}
}

// dropWorker removes a worker that exited on its own.
func (p *Pool) dropWorker(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workers := p.workers[w.Protocol]
	kept := workers[:0]
	for _, other := range workers {
		if other != w {
			kept = append(kept, other)
		}
	}
	p.workers[w.Protocol] = kept
	log.Warn().Str("module", "transport.pool").Str("protocol", string(w.Protocol)).
		Int("port", w.Port).Msg("dropped dead worker from pool")
}

// WorkerCount reports the number of live pool workers across protocols.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, workers := range p.workers {
		for _, w := range workers {
			if !w.Terminated() {
				n++
			}
		}
	}
	return n
}

// Sweep reclaims idle workers periodically until the context is done.
func (p *Pool) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup()
		}
	}
}
