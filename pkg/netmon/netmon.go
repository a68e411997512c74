// Package netmon tracks reachability of the ingestion service and notifies on
// reconnect.
package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Prober reports whether the service is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor holds the last observed connectivity level. Reconnect callbacks are
// edge-triggered: they fire once per disconnected -> connected transition.
// The first observation only sets the level.
type Monitor struct {
	mu        sync.Mutex
	known     bool
	connected bool
	nextID    int
	callbacks map[int]func()

	prober   Prober
	interval time.Duration
	log      zerolog.Logger
}

// New returns a monitor that polls prober every interval once Run is called.
// prober may be nil when observations are pushed with Observe.
func New(prober Prober, interval time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		callbacks: make(map[int]func()),
		prober:    prober,
		interval:  interval,
		log:       log.With().Str("component", "netmon").Logger(),
	}
}

// IsConnected returns the last observed level.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnReconnect registers cb and returns a function that removes it.
func (m *Monitor) OnReconnect(cb func()) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.callbacks[id] = cb
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.callbacks, id)
			m.mu.Unlock()
		})
	}
}

// Observe records a connectivity observation. Callbacks run on the caller's
// goroutine, outside the lock.
func (m *Monitor) Observe(connected bool) {
	m.mu.Lock()
	reconnected := m.known && !m.connected && connected
	changed := !m.known || m.connected != connected
	m.known = true
	m.connected = connected

	var cbs []func()
	if reconnected {
		cbs = make([]func(), 0, len(m.callbacks))
		for _, cb := range m.callbacks {
			cbs = append(cbs, cb)
		}
	}
	m.mu.Unlock()

	if changed {
		m.log.Info().Bool("connected", connected).Msg("connectivity changed")
	}
	for _, cb := range cbs {
		cb()
	}
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil {
		return
	}
	m.Observe(m.prober.Probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug().Msg("netmon stopping")
			return
		case <-ticker.C:
			m.Observe(m.prober.Probe(ctx))
		}
	}
}

// HTTPProber treats any HTTP response from URL as reachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber returns a prober with its own client bounded by timeout.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Probe sends a HEAD request to URL.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
