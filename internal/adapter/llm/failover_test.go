package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"nimbus-ai/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

type mockProvider struct {
	name     string
	chatFunc func(context.Context, *domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *mockProvider) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	return m.chatFunc(ctx, req)
}
func (m *mockProvider) Name() string { return m.name }

func TestFailoverPrimarySuccess(t *testing.T) {
	primary := &mockProvider{
		name: "primary",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{Message: domain.Message{Content: "primary response"}}, nil
		},
	}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			t.Fatal("fallback should not be called")
			return nil, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, newTestLogger())
	resp, err := fp.Chat(context.Background(), &domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "primary response" {
		t.Errorf("content = %q, want %q", resp.Message.Content, "primary response")
	}
}

func TestFailoverPrimaryFailFallbackSuccess(t *testing.T) {
	primary := &mockProvider{
		name: "primary",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, errors.New("primary down")
		},
	}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{Message: domain.Message{Content: "fallback response"}}, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, newTestLogger())
	resp, err := fp.Chat(context.Background(), &domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "fallback response" {
		t.Errorf("content = %q, want %q", resp.Message.Content, "fallback response")
	}
}

func TestFailoverAllFail(t *testing.T) {
	primary := &mockProvider{
		name: "primary",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, errors.New("primary down")
		},
	}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, errors.New("fallback down")
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, newTestLogger())
	_, err := fp.Chat(context.Background(), &domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Errorf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestFailoverOrder(t *testing.T) {
	var order []string
	fail := func(name string) *mockProvider {
		return &mockProvider{
			name: name,
			chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
				order = append(order, name)
				return nil, errors.New(name + " down")
			},
		}
	}
	last := &mockProvider{
		name: "third",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			order = append(order, "third")
			return &domain.ChatResponse{Message: domain.Message{Content: "ok"}}, nil
		},
	}

	fp := NewFailoverProvider(fail("first"), []domain.LLMProvider{fail("second"), last}, newTestLogger())
	if _, err := fp.Chat(context.Background(), &domain.ChatRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("call order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call order = %v, want %v", order, want)
			break
		}
	}
}

func TestFailoverDoesNotFailOverOnParseError(t *testing.T) {
	parseErr := domain.NewDomainError("test", domain.ErrOracleParse, "bad payload")
	primary := &mockProvider{
		name: "primary",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, parseErr
		},
	}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (*domain.ChatResponse, error) {
			t.Fatal("fallback should not be called on parse error")
			return nil, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, newTestLogger())
	_, err := fp.Chat(context.Background(), &domain.ChatRequest{})
	if !errors.Is(err, domain.ErrOracleParse) {
		t.Errorf("expected ErrOracleParse, got %v", err)
	}
}

func TestFailoverName(t *testing.T) {
	primary := &mockProvider{name: "primary"}
	fp := NewFailoverProvider(primary, nil, newTestLogger())
	if got := fp.Name(); got != "primary+failover" {
		t.Errorf("Name() = %q, want %q", got, "primary+failover")
	}
}
