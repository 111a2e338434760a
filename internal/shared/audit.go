package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrIncompleteAudit is returned for audit records missing action, entity or entity id.
var ErrIncompleteAudit = errors.New("audit log requires action, entity and entity_id")

// AuditLog is one row of audit_logs: who did what to which document.
type AuditLog struct {
	EventID  uuid.UUID
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Complete fills the event id and timestamp when unset. The event id is the
// dedupe key, so a retried write of the same record lands once.
func (l AuditLog) Complete(now time.Time) (AuditLog, error) {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return l, ErrIncompleteAudit
	}
	if l.EventID == uuid.Nil {
		l.EventID = uuid.New()
	}
	if l.At.IsZero() {
		l.At = now
	}
	if l.Meta == nil {
		l.Meta = map[string]any{}
	}
	return l, nil
}
