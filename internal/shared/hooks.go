package shared

import (
	"context"
	"log/slog"
)

// Auditor persists audit records.
type Auditor interface {
	Record(ctx context.Context, log AuditLog) error
}

// LedgerNotifier is told after posted ledger content changed.
type LedgerNotifier interface {
	Bump(ctx context.Context) error
}

// CommitObserver counts committed pipelines.
type CommitObserver interface {
	PipelineCommitted(kind string)
}

// Hooks fan a committed pipeline out to audit, report cache invalidation and metrics.
// Every field is optional. Failures are logged, never returned: the business event has
// already committed.
type Hooks struct {
	Audit    Auditor
	Notifier LedgerNotifier
	Observer CommitObserver
	Logger   *slog.Logger
}

// Committed records the audit row and counts the pipeline.
func (h Hooks) Committed(ctx context.Context, kind string, log AuditLog) {
	if h.Observer != nil {
		h.Observer.PipelineCommitted(kind)
	}
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(ctx, log); err != nil {
		h.logger().WarnContext(ctx, "audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

// LedgerChanged invalidates cached statements.
func (h Hooks) LedgerChanged(ctx context.Context) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Bump(ctx); err != nil {
		h.logger().WarnContext(ctx, "report cache bump failed", slog.Any("error", err))
	}
}

func (h Hooks) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
