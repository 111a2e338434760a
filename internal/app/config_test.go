package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetenv(t, "APP_ENV", "POS_POINTS_PER_HUNDRED", "POS_VOID_REVERSES_JOURNAL", "JOBS_INTEGRITY_CRON", "IDEMPOTENCY_RETENTION", "APP_RATE_LIMIT", "PG_DSN")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.False(t, cfg.IsProduction())
	require.EqualValues(t, 1, cfg.PointsPerHundred)
	require.False(t, cfg.VoidReversesJournal)
	require.Equal(t, "@hourly", cfg.JobsIntegrityCron)
	require.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("POS_POINTS_PER_HUNDRED", "3")
	t.Setenv("POS_VOID_REVERSES_JOURNAL", "true")
	t.Setenv("REPORT_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.EqualValues(t, 3, cfg.PointsPerHundred)
	require.True(t, cfg.VoidReversesJournal)
	require.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
}

func TestLoadConfigRejectsNegativePoints(t *testing.T) {
	t.Setenv("POS_POINTS_PER_HUNDRED", "-1")
	_, err := LoadConfig()
	require.Error(t, err)

	var nilCfg *Config
	require.False(t, nilCfg.IsProduction())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	require.True(t, RefreshTestMode())
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestLoggerTagsComponentAndHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"}, "worker")
	logger.Info("dropped")
	logger.Warn("kept", slog.String("job", "ledger:integrity"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	require.Equal(t, "kept", record["msg"])
	require.Equal(t, "odyssey-pos", record["service"])
	require.Equal(t, "worker", record["component"])
	require.Equal(t, "ledger:integrity", record["job"])

	buf.Reset()
	newLogger(&buf, nil, "api").Debug("quiet")
	require.Zero(t, buf.Len())
	require.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
}

func TestConnectionOptions(t *testing.T) {
	cfg := &Config{PGDSN: "postgres://pos@db/pos", PGMaxConns: 4, RedisAddr: "redis:6379", RedisDB: 1}

	pg := cfg.Postgres("worker")
	require.Equal(t, "postgres://pos@db/pos", pg.DSN)
	require.EqualValues(t, 4, pg.MaxConns)
	require.Equal(t, "odyssey-pos-worker", pg.AppName)

	redisOpts := cfg.Redis()
	require.Equal(t, "redis:6379", redisOpts.Client().Addr)
	require.Equal(t, 1, redisOpts.Asynq().DB)
}
