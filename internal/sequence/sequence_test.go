package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type memoryCounter struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counters: make(map[string]int64)}
}

func (m *memoryCounter) Increment(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[prefix]++
	return m.counters[prefix], nil
}

type failingCounter struct{}

func (failingCounter) Increment(context.Context, string) (int64, error) {
	return 0, errors.New("boom")
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	repo := newMemoryCounter()
	ctx := context.Background()

	first, err := Next(ctx, repo, PrefixInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-0001", first)

	second, err := Next(ctx, repo, PrefixInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-0002", second)

	other, err := Next(ctx, repo, PrefixGRN)
	require.NoError(t, err)
	require.Equal(t, "GRN-0001", other)
}

func TestFormatWidensPastFourDigits(t *testing.T) {
	require.Equal(t, "PAY-0042", Format(PrefixPayment, 42))
	require.Equal(t, "PAY-12345", Format(PrefixPayment, 12345))
}

func TestNextRejectsBadPrefix(t *testing.T) {
	_, err := Next(context.Background(), newMemoryCounter(), "inv")
	require.ErrorIs(t, err, ErrInvalidPrefix)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Next(context.Background(), newMemoryCounter(), "")
	require.ErrorIs(t, err, ErrInvalidPrefix)
}

func TestNextWrapsRepositoryError(t *testing.T) {
	_, err := Next(context.Background(), failingCounter{}, PrefixJournal)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sequence: increment JE")
}

func TestParseRoundTrip(t *testing.T) {
	prefix, n, err := Parse("RET-0007")
	require.NoError(t, err)
	require.Equal(t, "RET", prefix)
	require.EqualValues(t, 7, n)

	_, _, err = Parse("RET-")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, _, err = Parse("0007")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentNextIsUniqueAndGapFree(t *testing.T) {
	const workers = 50
	repo := newMemoryCounter()
	numbers := make([]string, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			n, err := Next(context.Background(), repo, PrefixInvoice)
			numbers[i] = n
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]struct{}, workers)
	values := make([]int64, 0, workers)
	for _, number := range numbers {
		_, n, err := Parse(number)
		require.NoError(t, err)
		_, dup := seen[n]
		require.False(t, dup, "duplicate number %s", number)
		seen[n] = struct{}{}
		values = append(values, n)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		require.EqualValues(t, i+1, v)
	}
}
