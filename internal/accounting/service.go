package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts transactional and read-side repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAccounts(ctx context.Context) ([]Account, error)
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	PostedLines(ctx context.Context, accountID int64, until time.Time) ([]reports.Line, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when posted ledger content changes.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// AlarmRecorder counts integrity alarms.
type AlarmRecorder interface {
	IntegrityAlarm(check string)
}

// Service exposes manual journal maintenance and financial statements.
type Service struct {
	repo     RepositoryPort
	journal  *Journal
	audit    AuditPort
	notifier ChangeNotifier
	alarms   AlarmRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, journal *Journal, audit AuditPort, notifier ChangeNotifier, alarms AlarmRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, journal: journal, audit: audit, notifier: notifier, alarms: alarms, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateManualEntry stores an unposted journal entry.
func (s *Service) CreateManualEntry(ctx context.Context, input EntryInput) (JournalEntry, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return JournalEntry{}, err
	}
	input.Type = EntryTypeJournal
	input.Post = false
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.journal.CreateEntry(ctx, tx, input)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.CreatedBy, "journal.create", entry)
	return entry, nil
}

// PostEntry posts an entry. Repeating the call is a no-op.
func (s *Service) PostEntry(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var (
		entry       JournalEntry
		wasUnposted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		wasUnposted = !current.Posted
		entry, err = s.journal.Post(ctx, tx, entryID, actorID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if wasUnposted {
		s.changed(ctx)
		s.record(ctx, actorID, "journal.post", entry)
	}
	return entry, nil
}

// ReverseEntry posts an offsetting entry.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, memo string, actorID int64) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = s.journal.Reverse(ctx, tx, entryID, memo, actorID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.changed(ctx)
	s.record(ctx, actorID, "journal.reverse", reversal)
	return reversal, nil
}

// GetEntry returns one entry with lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// ListAccounts retrieves the chart of accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// Ledger returns the running-balance statement for one account.
func (s *Service) Ledger(ctx context.Context, accountID int64, from, to time.Time) (reports.Ledger, error) {
	if to.Before(from) {
		return reports.Ledger{}, shared.Validation("accounting: date range ends before it starts")
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return reports.Ledger{}, err
	}
	var info *reports.AccountInfo
	for _, a := range accounts {
		if a.ID == accountID {
			v := toInfo(a)
			info = &v
			break
		}
	}
	if info == nil {
		return reports.Ledger{}, shared.NotFound("account", accountID)
	}
	lines, err := s.repo.PostedLines(ctx, accountID, to)
	if err != nil {
		return reports.Ledger{}, fmt.Errorf("accounting: load lines: %w", err)
	}
	return reports.BuildLedger(*info, lines, from, to), nil
}

// TrialBalance folds every posted line up to asOf. Unequal totals are returned together with
// an integrity alarm.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error) {
	infos, lines, err := s.load(ctx, asOf)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	tb := reports.BuildTrialBalance(infos, lines, asOf)
	if !tb.Balanced {
		return tb, s.alarm(ctx, "trial_balance", "trial balance out of balance: debit %s credit %s",
			tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	}
	return tb, nil
}

// ProfitAndLoss reports revenue, expense and net income for [from, to].
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error) {
	if to.Before(from) {
		return reports.ProfitAndLoss{}, shared.Validation("accounting: date range ends before it starts")
	}
	infos, lines, err := s.load(ctx, to)
	if err != nil {
		return reports.ProfitAndLoss{}, err
	}
	return reports.BuildProfitAndLoss(infos, lines, from, to), nil
}

// BalanceSheet reports the financial position as of a date and checks the accounting equation.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error) {
	infos, lines, err := s.load(ctx, asOf)
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	bs := reports.BuildBalanceSheet(infos, lines, asOf)
	if !bs.Balanced {
		return bs, s.alarm(ctx, "balance_sheet", "balance sheet equation broken: assets %s liabilities %s equity %s",
			bs.TotalAssets.StringFixed(2), bs.TotalLiabilities.StringFixed(2), bs.TotalEquity.StringFixed(2))
	}
	return bs, nil
}

func (s *Service) load(ctx context.Context, until time.Time) ([]reports.AccountInfo, []reports.Line, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("accounting: load accounts: %w", err)
	}
	lines, err := s.repo.PostedLines(ctx, 0, until)
	if err != nil {
		return nil, nil, fmt.Errorf("accounting: load lines: %w", err)
	}
	infos := make([]reports.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, toInfo(a))
	}
	return infos, lines, nil
}

func (s *Service) alarm(ctx context.Context, check, format string, args ...any) error {
	err := shared.IntegrityAlarm(format, args...)
	s.logger.ErrorContext(ctx, "integrity alarm", slog.String("check", check), slog.Any("error", err))
	if s.alarms != nil {
		s.alarms.IntegrityAlarm(check)
	}
	return err
}

func (s *Service) changed(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "report cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	shared.Hooks{Audit: s.audit, Logger: s.logger}.Committed(ctx, "journal", shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"number": entry.Number,
			"posted": entry.Posted,
		},
		At: s.now(),
	})
}

func toInfo(a Account) reports.AccountInfo {
	return reports.AccountInfo{ID: a.ID, Code: a.Code, Name: a.Name, Type: string(a.Type), IsGroup: a.IsGroup}
}
