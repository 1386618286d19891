package service

import (
	"math/rand"
	"testing"

	"parimutuel/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forfeitPolicy(bps int64) PayoutPolicy {
	return PayoutPolicy{RetainedBasisPoints: bps, ZeroWinnerPolicy: models.ZeroWinnerForfeit}
}

func TestCalculatePayouts(t *testing.T) {
	t.Run("three contender scenario with ten percent retained", func(t *testing.T) {
		pool := models.NewWagerPool(3)
		require.NoError(t, pool.AddWager(0, 1, 100))
		require.NoError(t, pool.AddWager(1, 2, 200))
		require.NoError(t, pool.AddWager(0, 3, 50))

		report, err := CalculatePayouts(pool, 0, forfeitPolicy(1000))
		require.NoError(t, err)

		assert.Equal(t, int64(150), report.WinnerPoolSum)
		assert.Equal(t, int64(200), report.LoserPoolSum)
		assert.Equal(t, int64(180), report.Distributable)
		assert.Equal(t, int64(20), report.Retained)
		assert.Equal(t, int64(220), report.PayoutFor(1))
		assert.Equal(t, int64(110), report.PayoutFor(3))
		assert.Equal(t, int64(0), report.PayoutFor(2))
		assert.Len(t, report.Payouts, 2)

		require.NotNil(t, report.BiggestWinner)
		assert.Equal(t, int64(1), report.BiggestWinner.MemberID)
		assert.Equal(t, int64(120), report.BiggestWinner.Profit())
	})

	t.Run("truncates shares", func(t *testing.T) {
		pool := models.NewWagerPool(2)
		require.NoError(t, pool.AddWager(0, 1, 1))
		require.NoError(t, pool.AddWager(0, 2, 1))
		require.NoError(t, pool.AddWager(0, 3, 1))
		require.NoError(t, pool.AddWager(1, 4, 10))

		report, err := CalculatePayouts(pool, 0, forfeitPolicy(0))
		require.NoError(t, err)

		// 10/3 each, floored
		for _, p := range report.Payouts {
			assert.Equal(t, int64(4), p.Payout)
		}
		assert.Equal(t, int64(1), report.Retained)
		assert.Equal(t, int64(12), report.TotalPaid())
	})

	t.Run("no losers returns stakes", func(t *testing.T) {
		pool := models.NewWagerPool(2)
		require.NoError(t, pool.AddWager(1, 1, 70))
		require.NoError(t, pool.AddWager(1, 2, 30))

		report, err := CalculatePayouts(pool, 1, forfeitPolicy(2500))
		require.NoError(t, err)
		assert.Equal(t, int64(70), report.PayoutFor(1))
		assert.Equal(t, int64(30), report.PayoutFor(2))
		assert.Equal(t, int64(0), report.Retained)
	})

	t.Run("nobody backed the winner forfeits by default", func(t *testing.T) {
		pool := models.NewWagerPool(3)
		require.NoError(t, pool.AddWager(1, 1, 40))
		require.NoError(t, pool.AddWager(2, 2, 60))

		report, err := CalculatePayouts(pool, 0, forfeitPolicy(1000))
		require.NoError(t, err)
		assert.Empty(t, report.Payouts)
		assert.Nil(t, report.BiggestWinner)
		assert.False(t, report.ZeroWinnerRefund)
		assert.Equal(t, int64(100), report.Retained)
	})

	t.Run("nobody backed the winner refunds under refund policy", func(t *testing.T) {
		pool := models.NewWagerPool(3)
		require.NoError(t, pool.AddWager(1, 1, 40))
		require.NoError(t, pool.AddWager(2, 2, 60))

		report, err := CalculatePayouts(pool, 0, PayoutPolicy{RetainedBasisPoints: 1000, ZeroWinnerPolicy: models.ZeroWinnerRefund})
		require.NoError(t, err)
		assert.True(t, report.ZeroWinnerRefund)
		assert.Equal(t, int64(40), report.PayoutFor(1))
		assert.Equal(t, int64(60), report.PayoutFor(2))
		assert.Equal(t, int64(0), report.Retained)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		pool := models.NewWagerPool(2)

		_, err := CalculatePayouts(pool, 2, forfeitPolicy(0))
		assert.ErrorIs(t, err, models.ErrInvalidContenderIndex)

		_, err = CalculatePayouts(pool, 0, forfeitPolicy(BasisPointsScale))
		assert.Error(t, err)

		_, err = CalculatePayouts(pool, 0, PayoutPolicy{ZeroWinnerPolicy: "keep"})
		assert.Error(t, err)
	})
}

func TestCalculatePayouts_NeverExceedsDistributable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		contenders := 2 + rng.Intn(9)
		pool := models.NewWagerPool(contenders)
		members := int64(1 + rng.Intn(30))
		for m := int64(1); m <= members; m++ {
			_ = pool.AddWager(rng.Intn(contenders), m, int64(1+rng.Intn(5000)))
		}
		winner := rng.Intn(contenders)
		bps := int64(rng.Intn(BasisPointsScale))

		report, err := CalculatePayouts(pool, winner, forfeitPolicy(bps))
		require.NoError(t, err)

		if report.WinnerPoolSum == 0 {
			assert.Empty(t, report.Payouts)
			continue
		}

		// sum(payouts) * scale <= W * scale + L * (scale - bps)
		lhs := report.TotalPaid() * BasisPointsScale
		rhs := report.WinnerPoolSum*BasisPointsScale + report.LoserPoolSum*(BasisPointsScale-bps)
		assert.LessOrEqual(t, lhs, rhs)
		assert.Equal(t, report.LoserPoolSum, report.TotalPaid()-report.WinnerPoolSum+report.Retained)
		for _, p := range report.Payouts {
			assert.GreaterOrEqual(t, p.Payout, p.Wagered)
		}
	}
}

func TestBasisPointsFromFraction(t *testing.T) {
	tests := []struct {
		fraction float64
		want     int64
		wantErr  bool
	}{
		{fraction: 0, want: 0},
		{fraction: 0.1, want: 1000},
		{fraction: 0.0525, want: 525},
		{fraction: 0.99994, want: 9999},
		{fraction: 0.99996, wantErr: true},
		{fraction: 1, wantErr: true},
		{fraction: -0.1, wantErr: true},
	}

	for _, tt := range tests {
		got, err := BasisPointsFromFraction(tt.fraction)
		if tt.wantErr {
			assert.Error(t, err, "fraction %v", tt.fraction)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "fraction %v", tt.fraction)
	}
}
