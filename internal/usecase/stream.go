package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nimbus-ai/internal/domain"
)

// StreamEncoder turns loop steps into an ordered event stream. Sequence
// numbers start at 0 and increase by exactly 1 per emitted step; there
// is no buffering beyond the single in-flight event, so the producer
// blocks until the consumer takes each event. A detached consumer stops
// the blocking without stopping the producer: later events are counted
// and dropped.
type StreamEncoder struct {
	runID  string
	bus    domain.EventBus
	events chan domain.StreamEvent

	mu         sync.Mutex
	seq        uint64
	detached   chan struct{}
	detachOnce sync.Once
	closeOnce  sync.Once
	dropped    uint64
}

// NewStreamEncoder creates an encoder for one run. bus may be nil; when
// set, every event is also published as a loop.step bus event for
// observers outside the run's own consumer.
func NewStreamEncoder(runID string, bus domain.EventBus) *StreamEncoder {
	return &StreamEncoder{
		runID:    runID,
		bus:      bus,
		events:   make(chan domain.StreamEvent),
		detached: make(chan struct{}),
	}
}

// Emit stamps the step with the next sequence number and hands it to
// the consumer. Blocks until the event is taken or the consumer has
// detached; detaching drops the event but never disturbs the producer.
func (e *StreamEncoder) Emit(ctx context.Context, step domain.LoopStep) {
	e.mu.Lock()
	ev := domain.StreamEvent{
		RunID:     e.runID,
		Seq:       e.seq,
		Step:      step,
		Timestamp: time.Now().UTC(),
	}
	e.seq++
	e.mu.Unlock()

	if e.bus != nil {
		if payload, err := json.Marshal(ev); err == nil {
			e.bus.Publish(ctx, domain.Event{
				Type:      domain.EventLoopStep,
				Timestamp: ev.Timestamp,
				SessionID: domain.SessionIDFrom(ctx),
				RunID:     e.runID,
				Payload:   payload,
			})
		}
	}

	select {
	case <-e.detached:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	default:
		select {
		case e.events <- ev:
		case <-e.detached:
			e.mu.Lock()
			e.dropped++
			e.mu.Unlock()
		}
	}
}

// Events is the consumer side. The channel closes when the producer
// finishes; a consumer that stops reading must call Detach or the
// producer blocks forever.
func (e *StreamEncoder) Events() <-chan domain.StreamEvent {
	return e.events
}

// Detach marks the consumer gone. Idempotent. Subsequent and in-flight
// emits are dropped.
func (e *StreamEncoder) Detach() {
	e.detachOnce.Do(func() { close(e.detached) })
}

// Close signals end of stream to the consumer. Producer-side; call
// after the terminal step has been emitted.
func (e *StreamEncoder) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}

// Dropped reports how many events were discarded after detach.
func (e *StreamEncoder) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// RunID returns the run this encoder belongs to.
func (e *StreamEncoder) RunID() string { return e.runID }
