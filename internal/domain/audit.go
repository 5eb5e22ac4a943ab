package domain

import "time"

// AuditEvent is a single append-only audit record.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	User      string            `json:"user,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Audit event types.
const (
	AuditAuthRegister = "auth.register"
	AuditAuthLogin    = "auth.login"
	AuditAuthLogout   = "auth.logout"
	AuditQuery        = "query.received"
	AuditOracleCall   = "oracle.call"
	AuditToolExec     = "tool.exec"
	AuditLoopAborted  = "loop.aborted"
)

// AuditLogger records audit events. Implementations must be safe for
// concurrent use.
type AuditLogger interface {
	Log(event AuditEvent) error
	Close() error
}
