package testutil

import (
	"context"
	"sync"

	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/types"
	"github.com/samber/lo"
)

var _ publisher.EventPublisher = (*InMemoryPublisherService)(nil)

// InMemoryPublisherService records published events for assertions
type InMemoryPublisherService struct {
	mu     sync.RWMutex
	events []*publisher.Event
	err    error
}

func NewInMemoryEventPublisher() *InMemoryPublisherService {
	return &InMemoryPublisherService{}
}

// FailWith makes Publish return err without recording the event
func (p *InMemoryPublisherService) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *InMemoryPublisherService) Publish(ctx context.Context, event *publisher.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// GetEvents returns all published events
func (p *InMemoryPublisherService) GetEvents() []*publisher.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	events := make([]*publisher.Event, len(p.events))
	copy(events, p.events)
	return events
}

// EventsOfType returns the published events of one type
func (p *InMemoryPublisherService) EventsOfType(eventType types.EventType) []*publisher.Event {
	return lo.Filter(p.GetEvents(), func(e *publisher.Event, _ int) bool {
		return e.Type == eventType
	})
}

// Clear removes all published events
func (p *InMemoryPublisherService) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.err = nil
}
