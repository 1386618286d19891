package rounds

import (
	"strings"
	"testing"
	"time"

	"parimutuel/bot/common"
	"parimutuel/models"
	"parimutuel/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(status models.RoundStatus) *models.RoundSnapshot {
	return &models.RoundSnapshot{
		RoundID:     "round-1",
		CommunityID: 42,
		Title:       "Finals",
		Status:      status,
		TotalPool:   330,
		Deadline:    time.Date(2024, 6, 1, 20, 10, 0, 0, time.UTC),
		Contenders: []models.ContenderSnapshot{
			{Number: 1, Name: "Red", Total: 220, Count: 2, TopBettorID: 7, TopBettorAmount: 120, Percentage: 66.67, Odds: 1.5},
			{Number: 2, Name: "Blue", Total: 110, Count: 1, TopBettorID: 9, TopBettorAmount: 110, Percentage: 33.33, Odds: 3},
		},
	}
}

func TestBuildStatusEmbed(t *testing.T) {
	t.Run("open round", func(t *testing.T) {
		embed := BuildStatusEmbed(testSnapshot(models.RoundStatusOpen))

		assert.Equal(t, "🎲 Finals", embed.Title)
		assert.Equal(t, common.ColorPrimary, embed.Color)
		assert.Contains(t, embed.Description, "<t:1717272600:R>")
		require.Len(t, embed.Fields, 2)
		assert.Equal(t, "#1 Red", embed.Fields[0].Name)
		assert.Contains(t, embed.Fields[0].Value, "66.67%")
		assert.Contains(t, embed.Fields[0].Value, "1.50x")
		assert.Contains(t, embed.Fields[0].Value, "<@7>")
		assert.Contains(t, embed.Footer.Text, "330")
	})

	t.Run("closed round", func(t *testing.T) {
		embed := BuildStatusEmbed(testSnapshot(models.RoundStatusClosed))
		assert.Equal(t, common.ColorWarning, embed.Color)
		assert.Contains(t, embed.Description, "closed")
	})

	t.Run("contender without bets has no top bettor", func(t *testing.T) {
		snap := testSnapshot(models.RoundStatusOpen)
		snap.Contenders[1] = models.ContenderSnapshot{Number: 2, Name: "Blue"}
		embed := BuildStatusEmbed(snap)
		assert.NotContains(t, embed.Fields[1].Value, "Top:")
		assert.Contains(t, embed.Fields[1].Value, "Odds -")
	})
}

func TestBuildPayoutEmbed(t *testing.T) {
	winner := models.MemberPayout{MemberID: 7, Wagered: 120, Payout: 180}
	report := &models.PayoutReport{
		RoundID:       "round-1",
		Title:         "Finals",
		WinnerName:    "Red",
		WinnerPoolSum: 220,
		LoserPoolSum:  110,
		Distributable: 110,
		Payouts: []models.MemberPayout{
			{MemberID: 8, Wagered: 100, Payout: 150},
			winner,
		},
		BiggestWinner: &winner,
		SettledAt:     time.Now(),
	}

	embed := BuildPayoutEmbed(report)
	assert.Equal(t, "🏆 Red wins Finals", embed.Title)
	assert.Equal(t, common.ColorSuccess, embed.Color)

	var payouts, biggest string
	for _, f := range embed.Fields {
		switch f.Name {
		case "Payouts":
			payouts = f.Value
		case "Biggest winner":
			biggest = f.Value
		}
	}
	assert.Contains(t, biggest, "<@7> +60")
	lines := strings.Split(payouts, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "<@7>"), "largest payout is listed first")

	t.Run("forfeited pool", func(t *testing.T) {
		embed := BuildPayoutEmbed(&models.PayoutReport{Title: "Finals", WinnerName: "Blue", LoserPoolSum: 330, Retained: 330})
		assert.Contains(t, embed.Description, "forfeited")
		assert.Equal(t, common.ColorWarning, embed.Color)
	})
}

func TestBuildRefundEmbed(t *testing.T) {
	report := &models.RefundReport{
		Title:   "Finals",
		Refunds: []models.MemberPayout{{MemberID: 7, Wagered: 50, Payout: 50}},
		Total:   50,
	}

	embed := BuildRefundEmbed(report)
	assert.Equal(t, "↩️ Finals refunded", embed.Title)
	assert.Contains(t, embed.Description, "1 members")

	report.Expired = true
	embed = BuildRefundEmbed(report)
	assert.Equal(t, "⌛ Finals expired", embed.Title)
	assert.True(t, strings.HasPrefix(embed.Description, "No winner was declared in time."))
}

func TestBuildResultEmbed(t *testing.T) {
	pool := models.NewWagerPool(2)
	require.NoError(t, pool.AddWager(0, 7, 100))

	result := &models.RoundResult{
		Title:      "Finals",
		Contenders: []string{"Red", "Blue"},
		Pool:       pool,
		Payout:     &models.PayoutReport{WinnerName: "Red"},
	}

	embed := BuildResultEmbed(result)
	assert.Equal(t, "Winner: **Red**", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[0].Value, "<@7>")
	assert.Equal(t, "No wagers", embed.Fields[1].Value)
}

func TestBuildWagerListEmbed(t *testing.T) {
	embed := BuildWagerListEmbed("Finals", nil)
	assert.Equal(t, "No wagers yet.", embed.Description)

	embed = BuildWagerListEmbed("Finals", []service.WagerListing{
		{MemberID: 7, ContenderNumber: 2, ContenderName: "Blue", Amount: 1500},
	})
	assert.Equal(t, "<@7> → #2 Blue: 1,500", embed.Description)
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "x"
	}
	out := truncateLines(lines, 10)
	assert.True(t, strings.HasSuffix(out, "…and 2 more"))
	assert.Equal(t, "x\nx", truncateLines(lines[:2], 10))
}
