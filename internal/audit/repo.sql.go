package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository writes and reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertAuditSQL = `INSERT INTO audit_logs (event_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING`

// Record persists log. It satisfies shared.Auditor.
func (r *Repository) Record(ctx context.Context, log shared.AuditLog) error {
	log, err := log.Complete(time.Now())
	if err != nil {
		return err
	}
	meta, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertAuditSQL, log.EventID, log.ActorID, log.Action, log.Entity, log.EntityID, meta, log.At)
	return err
}

const timelineSQL = `SELECT event_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR entity_id = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id DESC
LIMIT $7 OFFSET $8`

// AuditTimeline runs the filtered query.
func (r *Repository) AuditTimeline(ctx context.Context, q Query) ([]Row, error) {
	to := pgtype.Timestamptz{}
	if !q.To.IsZero() {
		to = toPgTime(q.To.AddDate(0, 0, 1))
	}
	var actor pgtype.Int8
	if q.ActorID != 0 {
		actor = pgtype.Int8{Int64: q.ActorID, Valid: true}
	}
	var limit pgtype.Int4
	if q.Limit > 0 {
		limit = pgtype.Int4{Int32: int32(q.Limit), Valid: true}
	}
	rows, err := r.pool.Query(ctx, timelineSQL,
		toPgTime(q.From), to, actor,
		optionalText(q.Entity), optionalText(q.EntityID), optionalText(q.Action),
		limit, q.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		var (
			out     Row
			eventID pgtype.UUID
		)
		if err := row.Scan(&eventID, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &out.Meta, &out.At); err != nil {
			return Row{}, err
		}
		out.EventID = uuid.UUID(eventID.Bytes)
		return out, nil
	})
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
