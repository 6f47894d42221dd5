package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/storage"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// Redriver re-invokes the settlement for an item stuck under a pending
// transaction. Implemented by the market service.
type Redriver interface {
	RerunTransaction(ctx context.Context, key market.ItemKey) (market.Event, error)
}

// Poller watches items locked by an in-flight settlement and re-drives them.
// There is no protocol-level timeout on a stalled transaction id; the poller
// is the scheduling layer responsible for retrying it.
type Poller struct {
	store    storage.ItemStore
	redriver Redriver
	interval time.Duration
	backoff  time.Duration
	log      *logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[market.ItemKey]time.Time
}

// NewPoller constructs a poller over the item store.
func NewPoller(store storage.ItemStore, redriver Redriver, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("settlement-poller")
	}
	return &Poller{
		store:       store,
		redriver:    redriver,
		interval:    interval,
		backoff:     interval * 2,
		log:         log,
		nextAttempt: make(map[market.ItemKey]time.Time),
	}
}

// Start launches the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("settlement poller started")
	return nil
}

// Stop halts the loop and waits for it to finish.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Poller) tick(ctx context.Context) {
	items, err := p.store.ListLockedItems(ctx)
	if err != nil {
		p.log.WithError(err).Warn("list locked items failed")
		return
	}

	now := time.Now()
	for _, item := range items {
		key := item.Key()
		if !p.shouldAttempt(key, now) {
			continue
		}

		if _, err := p.redriver.RerunTransaction(ctx, key); err != nil {
			p.log.WithError(err).Warnf("re-drive of %s failed", key)
			p.scheduleNext(key)
			continue
		}
		p.log.Infof("pending settlement on %s re-driven", key)
		p.clearSchedule(key)
	}
}

func (p *Poller) shouldAttempt(key market.ItemKey, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.nextAttempt[key]
	return !ok || now.After(next)
}

func (p *Poller) scheduleNext(key market.ItemKey) {
	p.mu.Lock()
	p.nextAttempt[key] = time.Now().Add(p.backoff)
	p.mu.Unlock()
}

func (p *Poller) clearSchedule(key market.ItemKey) {
	p.mu.Lock()
	delete(p.nextAttempt, key)
	p.mu.Unlock()
}
