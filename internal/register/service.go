package register

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sequence"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TxScope exposes the repositories a session change touches.
type TxScope interface {
	Register() TxRepository
	Sequences() sequence.TxRepository
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxScope) error) error
	GetSession(ctx context.Context, id int64) (Session, error)
	ActiveSession(ctx context.Context, cashierID int64) (Session, bool, error)
}

// Service opens and closes sessions.
type Service struct {
	repo   RepositoryPort
	hooks  shared.Hooks
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, hooks shared.Hooks, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hooks: hooks, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Open starts a session for the cashier.
func (s *Service) Open(ctx context.Context, input OpenInput) (Session, error) {
	if input.CashierID <= 0 {
		return Session{}, ErrCashierRequired
	}
	if err := shared.ValidateStruct(input); err != nil {
		return Session{}, err
	}
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		if _, found, err := scope.Register().OpenSessionForUpdate(ctx, input.CashierID); err != nil {
			return err
		} else if found {
			return ErrSessionOpen
		}
		number, err := sequence.Next(ctx, scope.Sequences(), sequence.PrefixRegister)
		if err != nil {
			return err
		}
		session, err = scope.Register().InsertSession(ctx, Session{
			Number:      number,
			CashierID:   input.CashierID,
			OpenedAt:    s.now().UTC(),
			OpeningCash: shared.Round2(input.OpeningCash),
			Status:      StatusOpen,
		})
		return err
	})
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "register session opened", slog.String("number", session.Number), slog.Int64("cashier_id", session.CashierID))
	s.hooks.Committed(ctx, "register_open", shared.AuditLog{
		ActorID:  input.CashierID,
		Action:   "register.open",
		Entity:   "register_session",
		EntityID: session.Number,
		Meta:     map[string]any{"opening_cash": session.OpeningCash.StringFixed(2)},
		At:       session.OpenedAt,
	})
	return session, nil
}

// Close ends a session and computes the cash variance.
func (s *Service) Close(ctx context.Context, sessionID, actorID int64, input CloseInput) (Session, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Session{}, err
	}
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, scope TxScope) error {
		var err error
		session, err = scope.Register().GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == StatusClosed {
			return ErrSessionClosed
		}
		now := s.now().UTC()
		session.ClosedAt = &now
		session.ClosingCash = shared.Round2(input.ClosingCash)
		session.ExpectedCash = session.OpeningCash.Add(session.CashTotal)
		session.Variance = session.ClosingCash.Sub(session.ExpectedCash)
		session.Status = StatusClosed
		return scope.Register().UpdateSession(ctx, session)
	})
	if err != nil {
		return Session{}, err
	}
	if !session.Variance.IsZero() {
		s.logger.WarnContext(ctx, "register closed with variance",
			slog.String("number", session.Number),
			slog.String("variance", session.Variance.StringFixed(2)))
	}
	s.hooks.Committed(ctx, "register_close", shared.AuditLog{
		ActorID:  actorID,
		Action:   "register.close",
		Entity:   "register_session",
		EntityID: session.Number,
		Meta: map[string]any{
			"expected_cash": session.ExpectedCash.StringFixed(2),
			"closing_cash":  session.ClosingCash.StringFixed(2),
			"variance":      session.Variance.StringFixed(2),
		},
		At: *session.ClosedAt,
	})
	return session, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, sessionID int64) (Session, error) {
	return s.repo.GetSession(ctx, sessionID)
}

// Active returns the cashier's open session.
func (s *Service) Active(ctx context.Context, cashierID int64) (Session, error) {
	if cashierID <= 0 {
		return Session{}, ErrCashierRequired
	}
	session, found, err := s.repo.ActiveSession(ctx, cashierID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, shared.NotFound("open register session for cashier", cashierID)
	}
	return session, nil
}

// Resolve picks the session a sale is recorded against. An explicit session must be open and
// belong to the cashier; otherwise the cashier's open session is used when there is one.
func Resolve(ctx context.Context, tx TxRepository, cashierID int64, sessionID *int64) (*Session, error) {
	if sessionID != nil {
		session, err := tx.GetSessionForUpdate(ctx, *sessionID)
		if err != nil {
			return nil, err
		}
		if session.Status != StatusOpen {
			return nil, ErrSessionClosed
		}
		if session.CashierID != cashierID {
			return nil, ErrForeignSession
		}
		return &session, nil
	}
	if cashierID <= 0 {
		return nil, nil
	}
	session, found, err := tx.OpenSessionForUpdate(ctx, cashierID)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

// RecordSale adds a checkout to a locked open session.
func RecordSale(ctx context.Context, tx TxRepository, session *Session, totals SaleTotals) error {
	if session.Status != StatusOpen {
		return ErrSessionClosed
	}
	session.apply(totals)
	return tx.UpdateSession(ctx, *session)
}
