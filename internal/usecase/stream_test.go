package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/usecase/eventbus"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamSequenceIsGapless(t *testing.T) {
	enc := NewStreamEncoder("run-1", nil)

	go func() {
		for i := 0; i < 5; i++ {
			enc.Emit(context.Background(), domain.LoopStep{Kind: domain.StepOracleCall, Iteration: i + 1})
		}
		enc.Close()
	}()

	var seqs []uint64
	for ev := range enc.Events() {
		if ev.RunID != "run-1" {
			t.Errorf("run id = %q", ev.RunID)
		}
		seqs = append(seqs, ev.Seq)
	}
	if len(seqs) != 5 {
		t.Fatalf("events = %d, want 5", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i) {
			t.Fatalf("seq[%d] = %d, want %d", i, seq, i)
		}
	}
}

func TestStreamEmitBlocksUntilConsumed(t *testing.T) {
	enc := NewStreamEncoder("run-1", nil)

	emitted := make(chan struct{})
	go func() {
		enc.Emit(context.Background(), domain.LoopStep{Kind: domain.StepOracleCall})
		close(emitted)
	}()

	select {
	case <-emitted:
		t.Fatal("Emit returned before the consumer took the event")
	case <-time.After(20 * time.Millisecond):
	}

	<-enc.Events()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("Emit did not return after the event was consumed")
	}
}

func TestStreamDetachUnblocksProducer(t *testing.T) {
	enc := NewStreamEncoder("run-1", nil)

	done := make(chan struct{})
	go func() {
		// Nobody is reading; Detach must let these through as drops.
		for i := 0; i < 3; i++ {
			enc.Emit(context.Background(), domain.LoopStep{Kind: domain.StepOracleCall})
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	enc.Detach()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after Detach")
	}
	if got := enc.Dropped(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
}

func TestStreamDetachAndCloseAreIdempotent(t *testing.T) {
	enc := NewStreamEncoder("run-1", nil)
	enc.Detach()
	enc.Detach()
	enc.Close()
	enc.Close()

	if _, ok := <-enc.Events(); ok {
		t.Error("events channel still open after Close")
	}
}

func TestStreamPublishesStepsToBus(t *testing.T) {
	bus := eventbus.New(slogDiscard())
	defer bus.Close()

	var mu sync.Mutex
	var got []domain.Event
	unsub := bus.Subscribe(domain.EventLoopStep, func(_ context.Context, ev domain.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	defer unsub()

	enc := NewStreamEncoder("run-1", bus)
	go func() {
		enc.Emit(context.Background(), domain.LoopStep{Kind: domain.StepFinalAnswer, Answer: "done"})
		enc.Close()
	}()
	for range enc.Events() {
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("bus events = %d, want 1", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].RunID != "run-1" {
		t.Errorf("bus event run id = %q", got[0].RunID)
	}
}

func TestLoopStreamEndToEnd(t *testing.T) {
	loop := newTestLoop(
		&fakeOracle{turns: []func(*domain.ChatRequest) (*domain.ChatResponse, error){
			toolTurn("get_weather", `{"location":"Berlin"}`),
			answerTurn("20C and clear."),
		}},
		map[string]domain.Tool{"get_weather": okWeatherTool()},
		&fakeHistory{},
	)

	enc := loop.Stream(context.Background(), NewRunID(), "sess", "weather in Berlin?")

	var events []domain.StreamEvent
	for ev := range enc.Events() {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("no events")
	}
	for i, ev := range events {
		if ev.Seq != uint64(i) {
			t.Fatalf("seq[%d] = %d", i, ev.Seq)
		}
	}
	last := events[len(events)-1]
	if last.Step.Kind != domain.StepFinalAnswer || last.Step.Answer != "20C and clear." {
		t.Errorf("last step = %+v", last.Step)
	}
}
