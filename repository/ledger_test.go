package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"parimutuel/events"
	"parimutuel/models"
	"parimutuel/repository/testutil"
	"parimutuel/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []events.BalanceChangeEvent
}

func recordChanges(bus *events.Bus) *changeRecorder {
	r := &changeRecorder{}
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes = append(r.changes, e.(events.BalanceChangeEvent))
	})
	return r
}

func (r *changeRecorder) count(txType models.TransactionType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.changes {
		if c.TransactionType == txType {
			n++
		}
	}
	return n
}

// exerciseLedger runs the behaviour every ledger backend shares
func exerciseLedger(t *testing.T, ledger service.Ledger, recorder *changeRecorder) {
	ctx := context.Background()
	a := ledger.ForCommunity(communityA)
	b := ledger.ForCommunity(communityB)

	t.Run("new members start with the default balance", func(t *testing.T) {
		balance, err := a.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("adjust returns the new balance", func(t *testing.T) {
		balance, err := a.AdjustBalance(ctx, models.BalanceAdjustment{MemberID: 1, Delta: -400, TransactionType: models.TransactionTypeWagerPlaced, RoundID: "r1"})
		require.NoError(t, err)
		assert.Equal(t, int64(600), balance)
	})

	t.Run("overdraw is refused", func(t *testing.T) {
		_, err := a.AdjustBalance(ctx, models.BalanceAdjustment{MemberID: 1, Delta: -601, TransactionType: models.TransactionTypeAdminAdjust})
		assert.ErrorIs(t, err, models.ErrNegativeBalance)

		balance, err := a.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(600), balance)
	})

	t.Run("balance can reach exactly zero", func(t *testing.T) {
		balance, err := a.AdjustBalance(ctx, models.BalanceAdjustment{MemberID: 1, Delta: -600, TransactionType: models.TransactionTypeWagerPlaced})
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("communities are isolated", func(t *testing.T) {
		balance, err := b.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("batch applies all or nothing", func(t *testing.T) {
		err := a.ApplyBatch(ctx, []models.BalanceAdjustment{
			{MemberID: 2, Delta: 100, TransactionType: models.TransactionTypeRoundPayout},
			{MemberID: 1, Delta: -1, TransactionType: models.TransactionTypeRoundPayout},
		})
		assert.ErrorIs(t, err, models.ErrNegativeBalance)

		balance, err := a.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)

		require.NoError(t, a.ApplyBatch(ctx, []models.BalanceAdjustment{
			{MemberID: 2, Delta: 100, TransactionType: models.TransactionTypeRoundPayout},
			{MemberID: 2, Delta: 50, TransactionType: models.TransactionTypeRoundPayout},
			{MemberID: 1, Delta: 10, TransactionType: models.TransactionTypeRoundPayout},
		}))
		balance, err = a.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1150), balance)
		balance, err = a.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(10), balance)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, a.ApplyBatch(ctx, nil))
	})

	t.Run("balance changes are published", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return recorder.count(models.TransactionTypeRoundPayout) == 3 &&
				recorder.count(models.TransactionTypeWagerPlaced) == 2
		}, testTimeout, testTick)
		assert.Positive(t, recorder.count(models.TransactionTypeInitial))
	})

	t.Run("concurrent adjustments each report their own write", func(t *testing.T) {
		const workers = 20
		_, err := b.GetBalance(ctx, 5)
		require.NoError(t, err)

		results := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				balance, err := b.AdjustBalance(ctx, models.BalanceAdjustment{MemberID: 5, Delta: 1, TransactionType: models.TransactionTypeAdminAdjust})
				assert.NoError(t, err)
				results <- balance
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int64]bool)
		for balance := range results {
			assert.False(t, seen[balance], "balance %d reported twice", balance)
			seen[balance] = true
		}
		for want := int64(1001); want <= 1000+workers; want++ {
			assert.True(t, seen[want], "missing balance %d", want)
		}
	})
}

func TestMemoryLedger(t *testing.T) {
	bus := events.NewBus()
	recorder := recordChanges(bus)
	exerciseLedger(t, NewMemoryLedger(bus, 1000), recorder)
}

func TestRedisLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testRedis := testutil.SetupTestRedis(t)

	bus := events.NewBus()
	recorder := recordChanges(bus)
	ledger := NewRedisLedger(testRedis.Client, bus, 1000)
	exerciseLedger(t, ledger, recorder)

	stored, err := testRedis.Client.HGetAll(context.Background(), ledgerKey(communityA)).Result()
	require.NoError(t, err)
	assert.Equal(t, "10", stored["1"])
	assert.Equal(t, "1150", stored["2"])
}
