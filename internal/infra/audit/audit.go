package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"nimbus-ai/internal/domain"
)

// FileAuditLogger implements domain.AuditLogger by appending JSONL to a
// file. One line per event, created 0600: the log records queries and
// account activity, so it is operator-eyes-only.
type FileAuditLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var _ domain.AuditLogger = (*FileAuditLogger)(nil)

// NewFileAuditLogger creates an audit logger that appends to path.
func NewFileAuditLogger(path string) (*FileAuditLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileAuditLogger{file: f, path: path}, nil
}

// Log writes an audit event as a single JSON line.
func (a *FileAuditLogger) Log(event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrAuditWrite, err.Error())
	}
	return nil
}

// Close flushes and closes the audit log file.
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// Nop is an AuditLogger that discards everything; used when auditing is
// disabled in config.
type Nop struct{}

var _ domain.AuditLogger = Nop{}

func (Nop) Log(domain.AuditEvent) error { return nil }
func (Nop) Close() error                { return nil }
