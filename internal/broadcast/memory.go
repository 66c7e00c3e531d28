package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Recorded is one event captured by the MemoryPublisher.
type Recorded struct {
	AuctionID uuid.UUID
	Event     string
	Envelope  Envelope
}

// MemoryPublisher is a simple in-memory publisher for development and tests.
// It records every published event and can be made to fail on demand.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Recorded
	err    error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes every subsequent publish return err (nil restores success).
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryPublisher) Publish(ctx context.Context, auctionID uuid.UUID, event string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.events = append(p.events, Recorded{AuctionID: auctionID, Event: event, Envelope: env})
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Recorded, len(p.events))
	copy(out, p.events)
	return out
}

// EventNames returns just the published event names, in order.
func (p *MemoryPublisher) EventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Event
	}
	return names
}
