package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/posting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/testing/memstore"
	"github.com/odyssey-erp/odyssey-pos/jobs"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

var asOf = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type books struct {
	store   *memstore.Store
	ledger  *accounting.Service
	stock   *inventory.Service
	entryID int64
}

func newBooks(t *testing.T) *books {
	t.Helper()
	store := memstore.New()
	roles := store.SeedChart()
	journal := accounting.NewJournal(discard())
	journal.WithNow(func() time.Time { return asOf })
	invLedger := inventory.NewLedger(discard(), nil)

	var entry accounting.JournalEntry
	require.NoError(t, store.AccountingPort().WithTx(context.Background(), func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		entry, err = journal.CreateEntry(ctx, tx, accounting.EntryInput{CreatedBy: 1, Post: true, Lines: []accounting.LineInput{
			{AccountID: roles.Account(posting.RoleCash), Debit: d("250")},
			{AccountID: roles.Account(posting.RoleSalesRevenue), Credit: d("250")},
		}})
		return err
	}))
	require.NoError(t, store.InventoryPort().WithTx(context.Background(), func(ctx context.Context, scope inventory.TxScope) error {
		_, err := invLedger.Receive(ctx, scope.Inventory(), inventory.Movement{ProductID: 3, Qty: 4, UnitCost: d("10")})
		return err
	}))

	return &books{
		store:   store,
		ledger:  accounting.NewService(store.AccountingPort(), journal, nil, nil, nil, discard()),
		stock:   inventory.NewService(store.InventoryPort(), invLedger, journal, posting.NewRules(roles), shared.Hooks{}, nil, discard()),
		entryID: entry.ID,
	}
}

func task(t *testing.T) *asynq.Task {
	t.Helper()
	tk, err := jobs.NewIntegrityTask(jobs.IntegrityPayload{AsOf: asOf})
	require.NoError(t, err)
	return tk
}

func TestIntegrityJobCleanBooks(t *testing.T) {
	b := newBooks(t)
	reg := prometheus.NewRegistry()
	job := jobs.NewIntegrityJob(b.ledger, b.stock, discard(), jobmetrics.NewMetrics(reg))

	report, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, report.LedgerBalanced)
	require.Equal(t, "250.00", report.TotalDebit)
	require.Empty(t, report.StockMismatches)

	require.NoError(t, job.Handle(context.Background(), task(t)))
	count, err := testutil.GatherAndCount(reg, "odyssey_pos_integrity_findings_total")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIntegrityJobCountsFindingsWithoutRetry(t *testing.T) {
	b := newBooks(t)
	b.store.OverwriteLine(b.entryID, 0, d("260"), d("0"))
	b.store.OverwritePosition(inventory.Position{ProductID: 3, Quantity: 7, AvgCost: d("10")})
	reg := prometheus.NewRegistry()
	job := jobs.NewIntegrityJob(b.ledger, b.stock, discard(), jobmetrics.NewMetrics(reg))

	require.NoError(t, job.Handle(context.Background(), task(t)))

	report, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.False(t, report.LedgerBalanced)
	require.Equal(t, "260.00", report.TotalDebit)
	require.Equal(t, "250.00", report.TotalCredit)
	require.Equal(t, []inventory.FoldMismatch{{ProductID: 3, PositionQty: 7, LoggedQty: 4}}, report.StockMismatches)

	expected := `
# HELP odyssey_pos_integrity_findings_total Integrity findings reported by scheduled checks, by check.
# TYPE odyssey_pos_integrity_findings_total counter
odyssey_pos_integrity_findings_total{check="inventory_fold"} 2
odyssey_pos_integrity_findings_total{check="trial_balance"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "odyssey_pos_integrity_findings_total"))
}

type brokenLedger struct{}

func (brokenLedger) TrialBalance(context.Context, time.Time) (reports.TrialBalance, error) {
	return reports.TrialBalance{}, errors.New("connection reset")
}

func TestIntegrityJobRetriesInfrastructureFailure(t *testing.T) {
	job := jobs.NewIntegrityJob(brokenLedger{}, nil, discard(), nil)
	err := job.Handle(context.Background(), task(t))
	require.EqualError(t, err, "connection reset")

	err = job.Handle(context.Background(), asynq.NewTask(jobs.TaskIntegrityCheck, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("DELETE 3"), r.err
}

func TestCleanupJob(t *testing.T) {
	db := &recordingExec{}
	job := jobs.NewCleanupJob(db, discard(), nil)

	tk, err := jobs.NewCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	var payload jobs.CleanupPayload
	require.NoError(t, json.Unmarshal(tk.Payload(), &payload))
	require.Equal(t, 24, payload.RetentionHours)

	before := time.Now()
	require.NoError(t, job.Handle(context.Background(), tk))
	require.Contains(t, db.sql, "DELETE FROM idempotency_keys")
	require.Len(t, db.args, 1)
	cutoff, ok := db.args[0].(time.Time)
	require.True(t, ok)
	require.WithinDuration(t, before.Add(-24*time.Hour), cutoff, time.Minute)

	db.err = errors.New("read only")
	require.Error(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskIdempotencyCleanup, nil)))
	cutoff = db.args[0].(time.Time)
	require.WithinDuration(t, time.Now().Add(-jobs.DefaultIdempotencyRetention), cutoff, time.Minute)
}

type fakeInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func health(t *testing.T, inspector jobs.QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	jobs.NewHandler(inspector, discard()).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := health(t, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queues":[
		{"queue":"ledger","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"paused":false},
		{"queue":"maintenance","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"paused":false}]}`, rec.Body.String())

	rec = health(t, fakeInspector{infos: map[string]*asynq.QueueInfo{
		jobs.QueueLedger: {Queue: jobs.QueueLedger, Pending: 2, Retry: 1},
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Queues []jobs.QueueStats `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []jobs.QueueStats{
		{Queue: jobs.QueueLedger, Pending: 2, Retry: 1},
		{Queue: jobs.QueueMaintenance},
	}, body.Queues)

	rec = health(t, fakeInspector{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerValidatesHandlers(t *testing.T) {
	noop := func(context.Context, *asynq.Task) error { return nil }
	redisOpts := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}

	_, err := jobs.NewWorker(jobs.WorkerConfig{RedisOpts: redisOpts, Handlers: []jobs.TaskHandler{
		{Type: jobs.TaskIntegrityCheck, Handler: noop},
		{Type: jobs.TaskIntegrityCheck, Handler: noop},
	}})
	require.ErrorContains(t, err, "duplicate handler")

	_, err = jobs.NewWorker(jobs.WorkerConfig{RedisOpts: redisOpts, Handlers: []jobs.TaskHandler{{Type: jobs.TaskIntegrityCheck}}})
	require.ErrorContains(t, err, "incomplete handler")

	cleanup, err := jobs.NewCleanupTask(time.Hour)
	require.NoError(t, err)
	_, err = jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Handlers:  []jobs.TaskHandler{{Type: jobs.TaskIntegrityCheck, Handler: noop}},
		Cron:      []jobs.CronRegistration{{Spec: "@daily", Task: cleanup}},
	})
	require.ErrorContains(t, err, "has no handler")
}

func TestTrackerRecordsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	boom := errors.New("boom")

	require.NoError(t, metrics.Track("a").End(nil))
	require.ErrorIs(t, metrics.Track("a").End(boom), boom)

	count, err := testutil.GatherAndCount(reg, "odyssey_jobs_runs_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	var nilMetrics *jobmetrics.Metrics
	require.ErrorIs(t, nilMetrics.Track("a").End(boom), boom)
	nilMetrics.AddFindings("x", 1)
}
