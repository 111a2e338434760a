package accounting_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
)

type auditLog struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditLog) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

type bumpCounter struct{ n int }

func (b *bumpCounter) Bump(context.Context) error {
	b.n++
	return nil
}

type alarms struct{ checks []string }

func (a *alarms) IntegrityAlarm(check string) { a.checks = append(a.checks, check) }

type ledgerFixture struct {
	store  *memstore.Store
	roles  posting.RoleMap
	svc    *accounting.Service
	audit  *auditLog
	bumps  *bumpCounter
	alarms *alarms
}

func newLedgerFixture(t *testing.T, notifier accounting.ChangeNotifier) *ledgerFixture {
	t.Helper()
	store := memstore.New()
	f := &ledgerFixture{store: store, roles: store.SeedChart(), audit: &auditLog{}, bumps: &bumpCounter{}, alarms: &alarms{}}
	if notifier == nil {
		notifier = f.bumps
	}
	f.svc = accounting.NewService(store.AccountingPort(), newJournal(), f.audit, notifier, f.alarms, discard())
	f.svc.WithNow(func() time.Time { return today })
	return f
}

func (f *ledgerFixture) post(t *testing.T, lines []accounting.LineInput) accounting.JournalEntry {
	t.Helper()
	entry, err := f.svc.CreateManualEntry(context.Background(), accounting.EntryInput{Memo: "manual", CreatedBy: 1, Lines: lines})
	require.NoError(t, err)
	entry, err = f.svc.PostEntry(context.Background(), entry.ID, 1)
	require.NoError(t, err)
	return entry
}

func (f *ledgerFixture) seedActivity(t *testing.T) {
	t.Helper()
	equity, ok := f.store.AccountByCode("3000")
	require.True(t, ok)
	f.post(t, []accounting.LineInput{
		{AccountID: f.roles.Account(posting.RoleCash), Debit: d("1000")},
		{AccountID: equity.ID, Credit: d("1000")},
	})
	f.post(t, []accounting.LineInput{
		{AccountID: f.roles.Account(posting.RoleCash), Debit: d("472")},
		{AccountID: f.roles.Account(posting.RoleSalesRevenue), Credit: d("400")},
		{AccountID: f.roles.Account(posting.RoleOutputCGST), Credit: d("36")},
		{AccountID: f.roles.Account(posting.RoleOutputSGST), Credit: d("36")},
	})
	f.post(t, []accounting.LineInput{
		{AccountID: f.roles.Account(posting.RoleCOGS), Debit: d("200")},
		{AccountID: f.roles.Account(posting.RoleCash), Credit: d("200")},
	})
}

func TestManualEntryLifecycle(t *testing.T) {
	f := newLedgerFixture(t, nil)

	entry, err := f.svc.CreateManualEntry(context.Background(), accounting.EntryInput{
		Memo:      "opening float",
		CreatedBy: 1,
		Lines:     cashSaleLines(f.roles, "20"),
	})
	require.NoError(t, err)
	require.False(t, entry.Posted)
	require.Equal(t, accounting.EntryTypeJournal, entry.Type)
	require.Zero(t, f.bumps.n)

	_, err = f.svc.PostEntry(context.Background(), entry.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.PostEntry(context.Background(), entry.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 1, f.bumps.n)

	reversal, err := f.svc.ReverseEntry(context.Background(), entry.ID, "entered twice", 1)
	require.NoError(t, err)
	require.Equal(t, "entered twice", reversal.Memo)
	require.Equal(t, 2, f.bumps.n)
	require.Equal(t, []string{"journal.create", "journal.post", "journal.reverse"}, f.audit.actions)

	_, err = f.svc.CreateManualEntry(context.Background(), accounting.EntryInput{CreatedBy: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatements(t *testing.T) {
	f := newLedgerFixture(t, nil)
	f.seedActivity(t)
	asOf := accounting.DateOf(today)

	tb, err := f.svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(d("1672")), tb.TotalDebit.String())

	pl, err := f.svc.ProfitAndLoss(context.Background(), asOf, asOf)
	require.NoError(t, err)
	require.True(t, pl.Revenue.Total.Equal(d("400")))
	require.True(t, pl.Expense.Total.Equal(d("200")))
	require.True(t, pl.NetIncome.Equal(d("200")))

	bs, err := f.svc.BalanceSheet(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, bs.Balanced)
	require.True(t, bs.TotalAssets.Equal(d("1272")), bs.TotalAssets.String())

	ledger, err := f.svc.Ledger(context.Background(), f.roles.Account(posting.RoleCash), asOf, asOf)
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 3)
	require.True(t, ledger.Closing.Equal(d("1272")))

	_, err = f.svc.Ledger(context.Background(), 123456, asOf, asOf)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.ProfitAndLoss(context.Background(), asOf, asOf.AddDate(0, 0, -1))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.alarms.checks)
}

func TestTrialBalanceRaisesIntegrityAlarm(t *testing.T) {
	f := newLedgerFixture(t, nil)
	f.seedActivity(t)
	entries := f.store.Entries()
	f.store.OverwriteLine(entries[1].ID, 0, d("473"), d("0"))

	tb, err := f.svc.TrialBalance(context.Background(), accounting.DateOf(today))
	require.ErrorIs(t, err, shared.ErrIntegrity)
	require.False(t, tb.Balanced)
	require.Equal(t, []string{"trial_balance"}, f.alarms.checks)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestReportCacheVersioning(t *testing.T) {
	cache := accounting.NewReportCache(newRedis(t), time.Minute)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)

	require.NoError(t, cache.Bump(ctx))
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, ver)

	var disabled *accounting.ReportCache
	ver, err = disabled.Version(ctx)
	require.NoError(t, err)
	require.Zero(t, ver)
	require.NoError(t, disabled.Bump(ctx))
}

func TestReportServiceServesCachedStatementUntilBump(t *testing.T) {
	cache := accounting.NewReportCache(newRedis(t), time.Minute)
	f := newLedgerFixture(t, cache)
	f.seedActivity(t)
	reports := accounting.NewReportService(f.svc, cache)
	asOf := accounting.DateOf(today)
	ctx := context.Background()

	first, err := reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)

	// Written behind the service's back, so nothing bumps the version.
	require.NoError(t, f.store.AccountingPort().WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		_, err := newJournal().CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Post: true, Lines: cashSaleLines(f.roles, "10")})
		return err
	}))
	cached, err := reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)
	require.True(t, cached.TotalDebit.Equal(first.TotalDebit))

	require.NoError(t, cache.Bump(ctx))
	fresh, err := reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)
	require.True(t, fresh.TotalDebit.Equal(first.TotalDebit.Add(d("10"))), fresh.TotalDebit.String())
}

func TestReportServiceDoesNotCacheAlarms(t *testing.T) {
	cache := accounting.NewReportCache(newRedis(t), time.Minute)
	f := newLedgerFixture(t, cache)
	f.seedActivity(t)
	reports := accounting.NewReportService(f.svc, cache)
	asOf := accounting.DateOf(today)
	entries := f.store.Entries()
	f.store.OverwriteLine(entries[0].ID, 0, d("999"), d("0"))

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := reports.TrialBalance(context.Background(), asOf)
			return err
		})
	}
	require.ErrorIs(t, g.Wait(), shared.ErrIntegrity)

	f.store.OverwriteLine(entries[0].ID, 0, d("1000"), d("0"))
	tb, err := reports.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, tb.Balanced)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error { return errors.New("audit_logs unavailable") }

func TestAuditFailureIsLoggedNotReturned(t *testing.T) {
	store := memstore.New()
	roles := store.SeedChart()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := accounting.NewService(store.AccountingPort(), newJournal(), failingAudit{}, nil, nil, logger)

	entry, err := svc.CreateManualEntry(context.Background(), accounting.EntryInput{Memo: "float", CreatedBy: 1, Lines: cashSaleLines(roles, "5")})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Contains(t, buf.String(), "audit record failed")
	require.Contains(t, buf.String(), "journal.create")
}

func TestReportServiceBuildsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := accounting.NewReportCache(client, time.Minute)

	f := newLedgerFixture(t, nil)
	f.seedActivity(t)
	reports := accounting.NewReportService(f.svc, cache)
	mr.Close()

	tb, err := reports.TrialBalance(context.Background(), accounting.DateOf(today))
	require.NoError(t, err)
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(d("1672")), tb.TotalDebit.String())
}
