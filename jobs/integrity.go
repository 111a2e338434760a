package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// TrialBalancer recomputes the trial balance.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
}

// FoldVerifier compares stock positions against their movement log.
type FoldVerifier interface {
	VerifyFold(ctx context.Context) ([]inventory.FoldMismatch, error)
}

// IntegrityJob periodically re-checks the books. Findings are logged and counted;
// only infrastructure failures make the task retry.
type IntegrityJob struct {
	Ledger  TrialBalancer
	Stock   FoldVerifier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// IntegrityReport summarises one run.
type IntegrityReport struct {
	AsOf            time.Time
	LedgerBalanced  bool
	TotalDebit      string
	TotalCredit     string
	StockMismatches []inventory.FoldMismatch
}

// NewIntegrityJob initialises the integrity check handler.
func NewIntegrityJob(ledger TrialBalancer, stock FoldVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Ledger:  ledger,
		Stock:   stock,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity check for an Asynq task.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity check: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.AsOf)
	return err
}

// Run performs both checks. The returned error is non-nil only when a check could not run.
func (j *IntegrityJob) Run(ctx context.Context, asOf time.Time) (report IntegrityReport, resultErr error) {
	tracker := j.Metrics.Track(TaskIntegrityCheck)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if asOf.IsZero() {
		asOf = j.now()
	}
	report.AsOf = accounting.DateOf(asOf)
	logger := j.logger().With(slog.String("as_of", report.AsOf.Format(time.DateOnly)))
	logger.Info("starting integrity check")

	if j.Ledger != nil {
		tb, err := j.Ledger.TrialBalance(ctx, report.AsOf)
		switch {
		case err == nil:
			report.LedgerBalanced = true
		case errors.Is(err, shared.ErrIntegrity):
			j.Metrics.AddFindings("trial_balance", 1)
			logger.Warn("trial balance out of balance",
				slog.String("debit", tb.TotalDebit.StringFixed(2)),
				slog.String("credit", tb.TotalCredit.StringFixed(2)))
		default:
			logger.Error("trial balance failed", slog.Any("error", err))
			return report, err
		}
		report.TotalDebit = tb.TotalDebit.StringFixed(2)
		report.TotalCredit = tb.TotalCredit.StringFixed(2)
	}

	if j.Stock != nil {
		mismatches, err := j.Stock.VerifyFold(ctx)
		if err != nil && !errors.Is(err, shared.ErrIntegrity) {
			logger.Error("stock fold check failed", slog.Any("error", err))
			return report, err
		}
		report.StockMismatches = mismatches
		j.Metrics.AddFindings("inventory_fold", len(mismatches))
		for _, m := range mismatches {
			logger.Warn("stock position drifted from log",
				slog.Int64("product_id", m.ProductID),
				slog.Int64("position_qty", m.PositionQty),
				slog.Int64("logged_qty", m.LoggedQty))
		}
	}

	logger.Info("integrity check completed",
		slog.Bool("ledger_balanced", report.LedgerBalanced),
		slog.Int("stock_mismatches", len(report.StockMismatches)))
	return report, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *IntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the job clock, mainly for tests.
func (j *IntegrityJob) WithClock(clock func() time.Time) {
	if clock != nil {
		j.clock = clock
	}
}
