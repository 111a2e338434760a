package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const (
	cacheVersionKey = "ledger:reports:version"
	bumpChannel     = "ledger.bump"
)

// ReportCache stores built statements in Redis under a version that is bumped on every posting.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper. A nil client disables caching.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *ReportCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	return ver, err
}

// Bump invalidates every cached statement and notifies peers.
func (c *ReportCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

func (c *ReportCache) key(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"ledger", "reports"}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

func (c *ReportCache) get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *ReportCache) set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// ReportService serves cached statements. Concurrent identical requests share one build, and
// statements carrying an integrity alarm are never cached.
type ReportService struct {
	service *Service
	cache   *ReportCache
	group   singleflight.Group
}

// NewReportService wraps service with cache.
func NewReportService(service *Service, cache *ReportCache) *ReportService {
	return &ReportService{service: service, cache: cache}
}

// TrialBalance returns the cached or freshly built trial balance.
func (r *ReportService) TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error) {
	var out reports.TrialBalance
	err := fetch(ctx, r, &out, []string{"tb", day(asOf)}, func(ctx context.Context) (any, error) {
		return r.service.TrialBalance(ctx, asOf)
	})
	return out, err
}

// ProfitAndLoss returns the cached or freshly built income statement.
func (r *ReportService) ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error) {
	var out reports.ProfitAndLoss
	err := fetch(ctx, r, &out, []string{"pl", day(from), day(to)}, func(ctx context.Context) (any, error) {
		return r.service.ProfitAndLoss(ctx, from, to)
	})
	return out, err
}

// BalanceSheet returns the cached or freshly built balance sheet.
func (r *ReportService) BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error) {
	var out reports.BalanceSheet
	err := fetch(ctx, r, &out, []string{"bs", day(asOf)}, func(ctx context.Context) (any, error) {
		return r.service.BalanceSheet(ctx, asOf)
	})
	return out, err
}

// Ledger is not cached; account statements are narrow and change with every posting.
func (r *ReportService) Ledger(ctx context.Context, accountID int64, from, to time.Time) (reports.Ledger, error) {
	return r.service.Ledger(ctx, accountID, from, to)
}

type buildResult struct {
	raw []byte
	err error
}

func fetch(ctx context.Context, r *ReportService, dest any, parts []string, build func(context.Context) (any, error)) error {
	// Redis is an accelerator only: when it fails the statement is built from the ledger.
	cacheable := true
	key, err := r.cache.key(ctx, parts...)
	if err != nil {
		r.service.logger.WarnContext(ctx, "report cache unavailable", slog.Any("error", err))
		cacheable = false
		key = strings.Join(append([]string{"ledger", "reports"}, parts...), ":") + ":uncached"
	} else if hit, err := r.cache.get(ctx, key, dest); err != nil {
		r.service.logger.WarnContext(ctx, "report cache read failed", slog.String("key", key), slog.Any("error", err))
		cacheable = false
	} else if hit {
		return nil
	}
	ch := r.group.DoChan(key, func() (any, error) {
		value, buildErr := build(ctx)
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if buildErr != nil {
			if shared.KindOf(buildErr) == shared.KindIntegrity {
				return buildResult{raw: raw, err: buildErr}, nil
			}
			return nil, buildErr
		}
		if cacheable {
			if err := r.cache.set(ctx, key, json.RawMessage(raw)); err != nil {
				r.service.logger.WarnContext(ctx, "report cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return buildResult{raw: raw}, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		built := res.Val.(buildResult)
		if err := json.Unmarshal(built.raw, dest); err != nil {
			return err
		}
		return built.err
	}
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
