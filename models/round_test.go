package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRound(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		title      string
		contenders []string
		duration   time.Duration
		wantErr    error
	}{
		{name: "valid", title: "Finals", contenders: []string{"A", "B"}, duration: time.Minute},
		{name: "ten contenders", title: "Big", contenders: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, duration: time.Minute},
		{name: "one contender", title: "Solo", contenders: []string{"A"}, duration: time.Minute, wantErr: ErrInvalidContenderCount},
		{name: "eleven contenders", title: "Too many", contenders: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, duration: time.Minute, wantErr: ErrInvalidContenderCount},
		{name: "duplicate names", title: "Dup", contenders: []string{"A", " a "}, duration: time.Minute, wantErr: ErrDuplicateContender},
		{name: "blank name", title: "Blank", contenders: []string{"A", "  "}, duration: time.Minute, wantErr: ErrEmptyContender},
		{name: "blank title", title: " ", contenders: []string{"A", "B"}, duration: time.Minute, wantErr: ErrEmptyTitle},
		{name: "zero duration", title: "Zero", contenders: []string{"A", "B"}, duration: 0, wantErr: ErrNonPositiveDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			round, err := NewRound(42, tt.title, tt.contenders, now, tt.duration)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, round)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, round.ID)
			assert.Equal(t, RoundStatusOpen, round.Status)
			assert.Equal(t, now.Add(tt.duration), round.Deadline)
			assert.Equal(t, len(tt.contenders), round.Pool.ContenderCount())
			assert.Equal(t, int64(0), round.TotalPool())
		})
	}
}

func TestRound_Close(t *testing.T) {
	t.Parallel()

	now := time.Now()
	round, err := NewRound(1, "Match", []string{"A", "B"}, now, time.Minute)
	require.NoError(t, err)

	assert.True(t, round.Close(now))
	require.NotNil(t, round.ClosedAt)
	assert.Equal(t, RoundStatusClosed, round.Status)

	later := now.Add(time.Second)
	assert.False(t, round.Close(later), "closing twice is a no-op")
	assert.Equal(t, now, *round.ClosedAt)
}

func TestRound_ContenderIndex(t *testing.T) {
	t.Parallel()

	round, err := NewRound(1, "Match", []string{"A", "B", "C"}, time.Now(), time.Minute)
	require.NoError(t, err)

	idx, err := round.ContenderIndex(3)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	for _, n := range []int{0, 4, -1} {
		_, err := round.ContenderIndex(n)
		assert.True(t, errors.Is(err, ErrInvalidContenderIndex))
		assert.Equal(t, ErrorKindValidation, KindOf(err))
	}
}

func TestRound_Snapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	round, err := NewRound(9, "A vs B", []string{"A", "B"}, now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, round.Pool.AddWager(0, 1, 75))
	require.NoError(t, round.Pool.AddWager(1, 2, 25))

	snap := round.Snapshot(now.Add(15 * time.Second))

	assert.Equal(t, int64(45), snap.SecondsRemaining)
	assert.Equal(t, int64(100), snap.TotalPool)
	require.Len(t, snap.Contenders, 2)
	assert.Equal(t, ContenderSnapshot{Number: 1, Name: "A", Total: 75, Count: 1, TopBettorID: 1, TopBettorAmount: 75, Percentage: 75, Odds: 100.0 / 75.0}, snap.Contenders[0])
	assert.Equal(t, 25.0, snap.Contenders[1].Percentage)

	t.Run("fingerprint ignores the countdown", func(t *testing.T) {
		later := round.Snapshot(now.Add(30 * time.Second))
		assert.Equal(t, snap.Fingerprint(), later.Fingerprint())
	})

	t.Run("fingerprint changes with the pool", func(t *testing.T) {
		before := round.Snapshot(now).Fingerprint()
		require.NoError(t, round.Pool.AddWager(1, 3, 5))
		assert.NotEqual(t, before, round.Snapshot(now).Fingerprint())
	})

	t.Run("no countdown once closed", func(t *testing.T) {
		round.Close(now)
		assert.Equal(t, int64(0), round.Snapshot(now).SecondsRemaining)
	})
}

func TestRoundError_Is(t *testing.T) {
	t.Parallel()

	detailed := ErrInvalidContenderCount.Withf("got %d", 11)
	assert.ErrorIs(t, detailed, ErrInvalidContenderCount)
	assert.NotErrorIs(t, detailed, ErrInvalidContenderIndex)
	assert.Equal(t, "got 11", detailed.Error())
	assert.Equal(t, ErrorKindInsufficientFunds, KindOf(ErrInsufficientBalance))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}
