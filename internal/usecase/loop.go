package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/tracer"
)

// Loop limits. Iterations count oracle round-trips; tool calls count
// executions across the whole run.
const (
	DefaultMaxIterations = 10
	DefaultMaxToolCalls  = 5
	DefaultOracleTimeout = 60 * time.Second
)

// LoopDeps carries the collaborators for the reasoning loop.
// Oracle, Tools and Builder are required; the rest degrade gracefully
// when nil.
type LoopDeps struct {
	Oracle  domain.LLMProvider
	Tools   domain.ToolExecutor
	History domain.ConversationStore
	Builder *ContextBuilder
	Bus     domain.EventBus
	Audit   domain.AuditLogger
	Logger  *slog.Logger

	MaxIterations int
	MaxToolCalls  int
	OracleTimeout time.Duration
}

// Loop drives one query through a bounded reason/act cycle: consult the
// oracle, execute any requested tool, feed the observation back, repeat
// until the oracle answers in plain text or a bound trips.
type Loop struct {
	deps LoopDeps
}

// NewLoop creates a loop, applying defaults for unset bounds.
func NewLoop(deps LoopDeps) *Loop {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = DefaultMaxIterations
	}
	if deps.MaxToolCalls <= 0 {
		deps.MaxToolCalls = DefaultMaxToolCalls
	}
	if deps.OracleTimeout <= 0 {
		deps.OracleTimeout = DefaultOracleTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Loop{deps: deps}
}

// NewRunID returns a fresh lexically-sortable run identifier.
func NewRunID() string {
	return strings.ToLower(ulid.Make().String())
}

// EmitFunc receives each loop step in order. The loop does not advance
// past a step until the function returns.
type EmitFunc func(step domain.LoopStep)

// Run executes one query to completion. Every step is handed to emit
// before the loop proceeds; exactly one terminal step is emitted, last.
// Tool failures are observations the oracle gets to react to; oracle
// failures, malformed tool requests and exceeded bounds are fatal.
// On success the exchange is appended to session history; aborted runs
// leave the history untouched.
func (l *Loop) Run(ctx context.Context, sessionID, query string, emit EmitFunc) (string, error) {
	ctx = domain.WithSessionID(ctx, sessionID)
	ctx, span := tracer.StartSpan(ctx, "loop.run",
		trace.WithAttributes(tracer.StringAttr("session.id", sessionID)))
	defer span.End()

	l.publish(ctx, domain.EventQueryReceived, sessionID, nil)
	l.audit(domain.AuditEvent{
		Type:      domain.AuditQuery,
		SessionID: sessionID,
		RequestID: domain.RequestIDFrom(ctx),
		Detail:    map[string]string{"query": query},
	})

	history, err := l.loadHistory(ctx, sessionID)
	if err != nil {
		// History is best-effort context; a broken store must not block
		// answering.
		l.deps.Logger.Warn("history load failed, continuing without context",
			"session_id", sessionID, "error", err)
	}

	msgs := l.deps.Builder.Build(history, query)
	schemas := l.deps.Tools.Schemas()
	toolCalls := 0

	for iter := 1; iter <= l.deps.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return l.abort(ctx, span, sessionID, emit,
				domain.NewDomainError("Loop.Run", domain.ErrClientDisconnected, ctx.Err().Error()))
		}

		span.AddEvent("loop.iteration", trace.WithAttributes(tracer.IntAttr("iteration", iter)))
		emit(domain.LoopStep{Kind: domain.StepOracleCall, Iteration: iter})

		resp, err := l.callOracle(ctx, &domain.ChatRequest{Messages: msgs, Tools: schemas})
		if err != nil {
			if ctx.Err() != nil {
				return l.abort(ctx, span, sessionID, emit,
					domain.NewDomainError("Loop.Run", domain.ErrClientDisconnected, ctx.Err().Error()))
			}
			return l.abort(ctx, span, sessionID, emit, err)
		}

		reply := resp.Message
		if len(reply.ToolCalls) == 0 {
			answer := strings.TrimSpace(reply.Content)
			if answer == "" {
				return l.abort(ctx, span, sessionID, emit,
					domain.NewDomainError("Loop.Run", domain.ErrOracleParse, "empty completion with no tool calls"))
			}
			emit(domain.LoopStep{Kind: domain.StepFinalAnswer, Iteration: iter, Answer: answer})
			l.finish(ctx, sessionID, query, answer)
			tracer.SetOK(span)
			return answer, nil
		}

		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			toolCalls++
			if toolCalls > l.deps.MaxToolCalls {
				return l.abort(ctx, span, sessionID, emit,
					domain.NewDomainError("Loop.Run", domain.ErrToolCallLimit, call.Name))
			}

			observation, step, fatal := l.executeTool(ctx, iter, call, emit)
			if fatal != nil {
				return l.abort(ctx, span, sessionID, emit, fatal)
			}
			emit(step)
			msgs = append(msgs, domain.Message{
				Role:       domain.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    observation,
			})
		}
	}

	return l.abort(ctx, span, sessionID, emit,
		domain.NewDomainError("Loop.Run", domain.ErrIterationLimit, ""))
}

// Stream runs the query in its own goroutine and returns the encoder
// carrying the ordered event stream. The channel closes after the
// terminal event.
func (l *Loop) Stream(ctx context.Context, runID, sessionID, query string) *StreamEncoder {
	enc := NewStreamEncoder(runID, l.deps.Bus)
	go func() {
		defer enc.Close()
		_, _ = l.Run(ctx, sessionID, query, func(step domain.LoopStep) {
			enc.Emit(ctx, step)
		})
	}()
	return enc
}

func (l *Loop) loadHistory(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	if l.deps.History == nil {
		return nil, nil
	}
	return l.deps.History.Load(ctx, sessionID)
}

func (l *Loop) callOracle(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, l.deps.OracleTimeout)
	defer cancel()

	ctx, span := tracer.StartSpan(ctx, "loop.oracle_call",
		trace.WithAttributes(tracer.StringAttr("provider", l.deps.Oracle.Name())))
	defer span.End()

	start := time.Now()
	resp, err := l.deps.Oracle.Chat(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, domain.ErrOracleParse) {
			return nil, err
		}
		return nil, domain.NewDomainError("Loop.callOracle", domain.ErrOracleUnavailable, err.Error())
	}

	tracer.SetOK(span)
	l.deps.Logger.Debug("oracle call completed",
		"provider", l.deps.Oracle.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"tool_calls", len(resp.Message.ToolCalls),
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// executeTool resolves, validates and runs one model-requested call.
// A non-nil fatal means the run must abort: unknown tools and
// schema-invalid arguments are the model misusing its contract.
// Ordinary execution failures come back as an error-
// flagged step for the model to observe.
func (l *Loop) executeTool(ctx context.Context, iter int, call domain.ToolCall, emit EmitFunc) (observation string, step domain.LoopStep, fatal error) {
	tool, err := l.deps.Tools.Get(call.Name)
	if err != nil {
		return "", domain.LoopStep{}, err
	}
	if v, ok := tool.(domain.ArgValidator); ok {
		if verr := v.ValidateArgs(call.Arguments); verr != nil {
			return "", domain.LoopStep{},
				domain.NewDomainError("Loop.executeTool", domain.ErrOracleParse, verr.Error())
		}
	}

	emit(domain.LoopStep{
		Kind:      domain.StepToolInvocation,
		Iteration: iter,
		Tool:      call.Name,
		Args:      call.Arguments,
	})
	l.audit(domain.AuditEvent{
		Type:      domain.AuditToolExec,
		SessionID: domain.SessionIDFrom(ctx),
		RequestID: domain.RequestIDFrom(ctx),
		Detail:    map[string]string{"tool": call.Name},
	})

	ctx, span := tracer.StartSpan(ctx, "loop.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)))
	defer span.End()

	res, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.LoopStep{},
				domain.NewDomainError("Loop.executeTool", domain.ErrClientDisconnected, ctx.Err().Error())
		}
		tracer.RecordError(span, err)
		l.deps.Logger.Warn("tool execution failed",
			"tool", call.Name, "error", err, "code", domain.ErrorCodeOf(err))
		return "error: " + err.Error(), domain.LoopStep{
			Kind:      domain.StepToolResult,
			Iteration: iter,
			Tool:      call.Name,
			Err:       err.Error(),
			ErrCode:   domain.ErrorCodeOf(err),
		}, nil
	}

	tracer.SetOK(span)
	step = domain.LoopStep{
		Kind:      domain.StepToolResult,
		Iteration: iter,
		Tool:      call.Name,
		Record:    res.Record,
	}
	if res.IsError {
		step.Err = res.Content
		step.ErrCode = domain.CodeToolFailure
	}
	return res.Content, step, nil
}

func (l *Loop) finish(ctx context.Context, sessionID, query, answer string) {
	if l.deps.History != nil {
		ex := domain.Exchange{Query: query, Answer: answer, At: time.Now().UTC()}
		if err := l.deps.History.Append(ctx, sessionID, ex); err != nil {
			l.deps.Logger.Error("history append failed",
				"session_id", sessionID, "error", err)
		} else {
			l.publish(ctx, domain.EventSessionAppended, sessionID, nil)
		}
	}
	l.publish(ctx, domain.EventLoopCompleted, sessionID, nil)
}

func (l *Loop) abort(ctx context.Context, span trace.Span, sessionID string, emit EmitFunc, err error) (string, error) {
	reason := domain.AbortReasonOf(err)
	emit(domain.LoopStep{
		Kind:    domain.StepAborted,
		Reason:  reason,
		Err:     err.Error(),
		ErrCode: domain.ErrorCodeOf(err),
	})

	tracer.RecordError(span, err)
	l.deps.Logger.Error("reasoning loop aborted",
		"session_id", sessionID, "reason", reason, "error", err)
	l.publish(ctx, domain.EventLoopAborted, sessionID, []byte(`{"reason":"`+string(reason)+`"}`))
	l.audit(domain.AuditEvent{
		Type:      domain.AuditLoopAborted,
		SessionID: sessionID,
		RequestID: domain.RequestIDFrom(ctx),
		Detail:    map[string]string{"reason": string(reason)},
	})
	return "", err
}

func (l *Loop) publish(ctx context.Context, typ domain.EventType, sessionID string, payload json.RawMessage) {
	if l.deps.Bus == nil {
		return
	}
	l.deps.Bus.Publish(ctx, domain.Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Payload:   payload,
	})
}

func (l *Loop) audit(ev domain.AuditEvent) {
	if l.deps.Audit == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	if err := l.deps.Audit.Log(ev); err != nil {
		l.deps.Logger.Warn("audit write failed", "type", ev.Type, "error", err)
	}
}
