// Package audit answers questions about who changed what: it pages and exports the rows the
// pipelines write to audit_logs after each commit.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxRange        = 366 * 24 * time.Hour
)

// Filters narrows the timeline. To is inclusive of its whole day.
type Filters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// Query is what repositories execute. Limit zero means no limit.
type Query struct {
	Filters
	Offset int
	Limit  int
}

// Row is one audit record.
type Row struct {
	EventID  uuid.UUID      `json:"event_id"`
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Paging describes the neighbours of the current page.
type Paging struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is one page of the timeline, newest first.
type Result struct {
	Rows   []Row  `json:"rows"`
	Paging Paging `json:"paging"`
}

// RepositoryPort reads audit rows newest first.
type RepositoryPort interface {
	AuditTimeline(ctx context.Context, q Query) ([]Row, error)
}

// Service coordinates timeline reads.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of matching rows.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Result, error) {
	if err := filters.validate(); err != nil {
		return Result{}, err
	}
	page, pageSize := shared.ClampPage(filters.Page, filters.PageSize, defaultPageSize, maxPageSize)
	filters.Page, filters.PageSize = page, pageSize

	// One extra row tells us whether a next page exists.
	rows, err := s.repo.AuditTimeline(ctx, Query{Filters: filters, Offset: (page - 1) * pageSize, Limit: pageSize + 1})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Row{}
	}
	paging := Paging{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Row, error) {
	if err := filters.validate(); err != nil {
		return nil, err
	}
	return s.repo.AuditTimeline(ctx, Query{Filters: filters})
}

func (f Filters) validate() error {
	if !f.From.IsZero() && !f.To.IsZero() {
		if f.From.After(f.To) {
			return shared.ValidationFields("invalid date range", map[string]string{"from": "must not be after to"})
		}
		if f.To.Sub(f.From) > maxRange {
			return shared.ValidationFields("invalid date range", map[string]string{"to": "range exceeds one year"})
		}
	}
	return nil
}

// Matches reports whether row passes the filters. In-memory repositories use it to mirror
// the SQL predicate.
func (f Filters) Matches(row Row) bool {
	if !f.From.IsZero() && row.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !row.At.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	if f.ActorID != 0 && row.ActorID != f.ActorID {
		return false
	}
	if f.Entity != "" && row.Entity != f.Entity {
		return false
	}
	if f.EntityID != "" && row.EntityID != f.EntityID {
		return false
	}
	return f.Action == "" || row.Action == f.Action
}

// FromLog converts a recorded shared.AuditLog into a Row.
func FromLog(log shared.AuditLog) Row {
	return Row{
		EventID:  log.EventID,
		At:       log.At,
		ActorID:  log.ActorID,
		Action:   log.Action,
		Entity:   log.Entity,
		EntityID: log.EntityID,
		Meta:     log.Meta,
	}
}
