package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// StepKind identifies one observable stage of a reasoning run.
type StepKind string

const (
	StepOracleCall     StepKind = "oracle_call"
	StepToolInvocation StepKind = "tool_invocation"
	StepToolResult     StepKind = "tool_result"
	StepFinalAnswer    StepKind = "final_answer"
	StepAborted        StepKind = "aborted"
)

// AbortReason explains why a run terminated without an answer.
type AbortReason string

const (
	AbortOracleUnavailable  AbortReason = "oracle_unavailable"
	AbortOracleParse        AbortReason = "oracle_parse_error"
	AbortIterationLimit     AbortReason = "iteration_limit_exceeded"
	AbortToolCallLimit      AbortReason = "tool_call_limit_exceeded"
	AbortClientDisconnected AbortReason = "client_disconnected"
)

// AbortReasonOf maps a fatal loop error to its abort reason. Unmatched
// errors report as oracle_unavailable, the broadest fatal category.
func AbortReasonOf(err error) AbortReason {
	switch {
	case errors.Is(err, ErrOracleParse), errors.Is(err, ErrToolNotFound):
		return AbortOracleParse
	case errors.Is(err, ErrIterationLimit):
		return AbortIterationLimit
	case errors.Is(err, ErrToolCallLimit):
		return AbortToolCallLimit
	case errors.Is(err, ErrClientDisconnected):
		return AbortClientDisconnected
	default:
		return AbortOracleUnavailable
	}
}

// LoopStep is one stage of a reasoning run as seen by stream consumers.
// Exactly one of the payload fields is populated, depending on Kind:
// Tool/Args for invocations, Record or Err for results, Answer for the
// final answer, Reason/Err for aborts.
type LoopStep struct {
	Kind      StepKind        `json:"kind"`
	Iteration int             `json:"iteration,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Record    *WeatherRecord  `json:"record,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	Err       string          `json:"error,omitempty"`
	ErrCode   ErrorCode       `json:"error_code,omitempty"`
	Reason    AbortReason     `json:"reason,omitempty"`
}

// Terminal reports whether this step ends the run. A run emits exactly
// one terminal step, always last.
func (s LoopStep) Terminal() bool {
	return s.Kind == StepFinalAnswer || s.Kind == StepAborted
}

// StreamEvent is a LoopStep stamped with its position in the run.
// Seq starts at 0 and increases by exactly 1 per event within a run.
type StreamEvent struct {
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	Step      LoopStep  `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}
