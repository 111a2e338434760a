package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/audit"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Record keeps log in memory so the store can stand in for the audit_logs writer.
func (s *Store) Record(_ context.Context, log shared.AuditLog) error {
	log, err := log.Complete(time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.audit {
		if existing.EventID == log.EventID {
			return nil
		}
	}
	s.audit = append(s.audit, log)
	return nil
}

// AuditTimeline filters recorded logs newest first, mirroring the SQL repository.
func (s *Store) AuditTimeline(_ context.Context, q audit.Query) ([]audit.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]audit.Row, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		row := audit.FromLog(s.audit[i])
		if q.Matches(row) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	if q.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[q.Offset:]
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}
