package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultProbeInterval is how often the Prober checks the backend.
const DefaultProbeInterval = 10 * time.Second

// Pinger checks that the backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and drives a Flag with the result.
type Prober struct {
	pinger   Pinger
	flag     *Flag
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProber creates a Prober. A non-positive interval uses DefaultProbeInterval.
func NewProber(pinger Pinger, flag *Flag, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		pinger:   pinger,
		flag:     flag,
		logger:   logger,
		interval: interval,
		timeout:  interval,
	}
}

// Probe performs one check and updates the flag. A check cut short by ctx
// leaves the flag as it was.
func (p *Prober) Probe(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(pingCtx)
	if ctx.Err() != nil {
		return p.flag.IsOnline()
	}
	online := err == nil
	if p.flag.Set(online) {
		if online {
			p.logger.Info("backend reachable")
		} else {
			p.logger.Warn("backend unreachable", "error", err)
		}
	}
	return online
}

// Start probes once, then keeps probing in the background until Stop.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.Probe(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Probe(ctx)
			}
		}
	}()
}

// Stop halts background probing and waits for the loop to exit.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
