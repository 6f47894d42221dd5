// Package events carries marketplace reply events to external consumers.
package events

import (
	"context"
	"sync"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

// Publisher delivers one event to the outside world. Delivery failures must
// not affect the action that emitted the event.
type Publisher interface {
	Publish(ctx context.Context, event market.Event) error
}

// MemoryPublisher records events in memory. Used in tests and as the default
// when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []market.Event
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher returns an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event market.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []market.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]market.Event(nil), p.events...)
}

// Last returns the most recent event, if any.
func (p *MemoryPublisher) Last() (market.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return market.Event{}, false
	}
	return p.events[len(p.events)-1], true
}
