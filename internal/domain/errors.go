package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// Weather subsystem.
	ErrDateOutOfRange      = fmt.Errorf("date outside supported range")
	ErrLocationNotFound    = fmt.Errorf("location not found")
	ErrUpstreamUnavailable = fmt.Errorf("weather upstream unavailable")
	ErrUpstreamRateLimited = fmt.Errorf("weather upstream rate limited")
	ErrInvalidResponse     = fmt.Errorf("weather upstream returned invalid response")

	// Oracle / reasoning loop.
	ErrOracleUnavailable  = fmt.Errorf("oracle unavailable")
	ErrOracleParse        = fmt.Errorf("oracle response unparseable")
	ErrIterationLimit     = fmt.Errorf("reasoning loop reached iteration limit")
	ErrToolCallLimit      = fmt.Errorf("reasoning loop reached tool call limit")
	ErrClientDisconnected = fmt.Errorf("client disconnected")

	// Tools.
	ErrToolNotFound = fmt.Errorf("tool not found")
	ErrToolFailure  = fmt.Errorf("tool execution failed")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Sessions and accounts.
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrDuplicateUser   = fmt.Errorf("user already registered")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrTokenRevoked    = fmt.Errorf("token revoked")
	ErrStoreFailure    = fmt.Errorf("session store failed")

	// Infrastructure.
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrRateLimit  = fmt.Errorf("rate limit exceeded")
	ErrAuditWrite = fmt.Errorf("audit log write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Weather.Fetch")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is transient from the caller's
// point of view: the same request may succeed later without any change.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamRateLimited) ||
		errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, ErrRateLimit)
}

// ErrorCode is a machine-parseable error category for monitoring and
// API responses.
type ErrorCode string

// Every sentinel error maps to exactly one code.
const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeDateOutOfRange      ErrorCode = "DATE_OUT_OF_RANGE"
	CodeLocationNotFound    ErrorCode = "LOCATION_NOT_FOUND"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	CodeInvalidResponse     ErrorCode = "INVALID_RESPONSE"
	CodeOracleUnavailable   ErrorCode = "ORACLE_UNAVAILABLE"
	CodeOracleParse         ErrorCode = "ORACLE_PARSE_ERROR"
	CodeIterationLimit      ErrorCode = "ITERATION_LIMIT_EXCEEDED"
	CodeToolCallLimit       ErrorCode = "TOOL_CALL_LIMIT_EXCEEDED"
	CodeClientDisconnected  ErrorCode = "CLIENT_DISCONNECTED"
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeToolFailure         ErrorCode = "TOOL_FAILURE"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	CodeDuplicateUser       ErrorCode = "DUPLICATE_USER"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeTokenRevoked        ErrorCode = "TOKEN_REVOKED"
	CodeStoreFailure        ErrorCode = "STORE_FAILURE"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuditWrite          ErrorCode = "AUDIT_WRITE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrDateOutOfRange:      CodeDateOutOfRange,
	ErrLocationNotFound:    CodeLocationNotFound,
	ErrUpstreamUnavailable: CodeUpstreamUnavailable,
	ErrUpstreamRateLimited: CodeUpstreamRateLimited,
	ErrInvalidResponse:     CodeInvalidResponse,
	ErrOracleUnavailable:   CodeOracleUnavailable,
	ErrOracleParse:         CodeOracleParse,
	ErrIterationLimit:      CodeIterationLimit,
	ErrToolCallLimit:       CodeToolCallLimit,
	ErrClientDisconnected:  CodeClientDisconnected,
	ErrToolNotFound:        CodeToolNotFound,
	ErrToolFailure:         CodeToolFailure,
	ErrInvalidInput:        CodeInvalidInput,
	ErrSessionNotFound:     CodeSessionNotFound,
	ErrUserNotFound:        CodeUserNotFound,
	ErrDuplicateUser:       CodeDuplicateUser,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrTokenRevoked:        CodeTokenRevoked,
	ErrStoreFailure:        CodeStoreFailure,
	ErrConfigLoad:          CodeConfigLoad,
	ErrRateLimit:           CodeRateLimit,
	ErrAuditWrite:          CodeAuditWrite,
}

// ErrorCodeOf returns the machine-parseable error code for the given
// error. It unwraps DomainError and uses errors.Is to match sentinels.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
