// Package netmon reports host connectivity transitions to interested
// listeners, replacing the browser online/offline events the desktop app
// relied on.
package netmon

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Monitor exposes the current connectivity state and change notifications.
type Monitor interface {
	// Online reports the last observed connectivity state.
	Online() bool
	// OnChange registers a listener invoked on every transition. The
	// returned function detaches it.
	OnChange(fn func(online bool)) func()
}

// Config holds probe settings.
type Config struct {
	// Address is the host:port dialed to decide connectivity, typically
	// the backend host.
	Address string

	// Interval is how often to probe.
	Interval time.Duration

	// Timeout bounds each dial attempt.
	Timeout time.Duration

	// Logger for probe activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults probing the given address.
func DefaultConfig(address string) *Config {
	return &Config{
		Address:  address,
		Interval: 15 * time.Second,
		Timeout:  3 * time.Second,
		Logger:   log.New(os.Stderr, "[netmon] ", log.LstdFlags),
	}
}

// Probe is a Monitor backed by a periodic TCP dial.
type Probe struct {
	config *Config

	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbe creates a probe and performs the initial connectivity check
// synchronously so Online is meaningful immediately.
func NewProbe(config *Config) *Probe {
	if config == nil {
		config = DefaultConfig("")
	}
	p := &Probe{
		config:    config,
		listeners: make(map[int]func(bool)),
	}
	p.online = p.check()
	return p
}

// Start begins the probe loop. Safe to call once; Stop tears it down.
func (p *Probe) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.observe(p.check())
			}
		}
	}()
}

// Stop ends the probe loop and waits for it to finish.
func (p *Probe) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Online reports the last observed state.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// OnChange registers a transition listener.
func (p *Probe) OnChange(fn func(bool)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// observe records a probe result and fans out on transitions.
func (p *Probe) observe(online bool) {
	p.mu.Lock()
	if online == p.online {
		p.mu.Unlock()
		return
	}
	p.online = online
	fns := make([]func(bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	p.config.Logger.Printf("connectivity changed: online=%v", online)
	for _, fn := range fns {
		fn(online)
	}
}

func (p *Probe) check() bool {
	if p.config.Address == "" {
		return true
	}
	conn, err := net.DialTimeout("tcp", p.config.Address, p.config.Timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
