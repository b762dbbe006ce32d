package netstatus

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Probe is a Provider that polls an HTTP health endpoint at a fixed
// interval. Any 2xx response counts as online; transport errors or other
// statuses count as offline.
type Probe struct {
	notifier
	url        string
	interval   time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	online bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbe creates a probe against the given health URL.
func NewProbe(url string, interval time.Duration, logger *slog.Logger) *Probe {
	return &Probe{
		url:        url,
		interval:   interval,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Start begins polling. It probes once immediately, then on each tick.
func (p *Probe) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop cancels polling and waits for the current probe (if any) to finish.
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

// Subscribe registers a transition callback.
func (p *Probe) Subscribe(fn func(online bool)) func() {
	return p.subscribe(fn)
}

func (p *Probe) run(ctx context.Context) {
	p.probeOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeOnce(ctx)
		}
	}
}

func (p *Probe) probeOnce(ctx context.Context) {
	online := p.check(ctx)

	p.mu.Lock()
	changed := p.online != online
	p.online = online
	p.mu.Unlock()

	if changed {
		p.logger.Info("connectivity transition", "online", online)
		p.notify(online)
	}
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
