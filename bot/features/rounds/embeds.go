package rounds

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"parimutuel/bot/common"
	"parimutuel/models"
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
)

// maxListedPayouts caps the per-member lines in settlement embeds
const maxListedPayouts = 10

// BuildStatusEmbed renders the live status of a round
func BuildStatusEmbed(snap *models.RoundSnapshot) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  fmt.Sprintf("🎲 %s", snap.Title),
		Fields: make([]*discordgo.MessageEmbedField, 0, len(snap.Contenders)),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Total pool: %s", common.FormatPoints(snap.TotalPool)),
		},
	}

	switch snap.Status {
	case models.RoundStatusOpen:
		embed.Color = common.ColorPrimary
		embed.Description = fmt.Sprintf("Betting closes %s. Use `/bet` to back a contender.",
			common.FormatDiscordTimestamp(snap.Deadline, "R"))
	case models.RoundStatusClosed:
		embed.Color = common.ColorWarning
		embed.Description = "🔒 Betting is closed. Waiting for the result."
	default:
		embed.Color = common.ColorInfo
		embed.Description = fmt.Sprintf("This round is %s.", snap.Status)
	}

	for _, c := range snap.Contenders {
		value := fmt.Sprintf("%s · %d bets · %s\nOdds %s",
			common.FormatPoints(c.Total), c.Count, common.FormatPercentage(c.Percentage), common.FormatOdds(c.Odds))
		if c.TopBettorID != 0 {
			value += fmt.Sprintf("\nTop: %s (%s)", common.GetUserMention(c.TopBettorID), common.FormatBalance(c.TopBettorAmount))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("#%d %s", c.Number, c.Name),
			Value:  value,
			Inline: true,
		})
	}
	return embed
}

// BuildPayoutEmbed announces a settled round
func BuildPayoutEmbed(report *models.PayoutReport) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("🏆 %s wins %s", report.WinnerName, report.Title),
		Color:     common.ColorSuccess,
		Timestamp: report.SettledAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Winning pool", Value: common.FormatPoints(report.WinnerPoolSum), Inline: true},
			{Name: "Losing pool", Value: common.FormatPoints(report.LoserPoolSum), Inline: true},
			{Name: "Paid out", Value: common.FormatPoints(report.TotalPaid()), Inline: true},
		},
	}

	switch {
	case report.ZeroWinnerRefund:
		embed.Description = "Nobody backed the winner, so every wager was refunded."
		embed.Color = common.ColorWarning
	case report.WinnerPoolSum == 0:
		embed.Description = "Nobody backed the winner. The pool is forfeited."
		embed.Color = common.ColorWarning
	}

	if report.Retained > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Retained", Value: common.FormatPoints(report.Retained), Inline: true,
		})
	}
	if report.BiggestWinner != nil && !report.ZeroWinnerRefund {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Biggest winner",
			Value: fmt.Sprintf("%s %s", common.GetUserMention(report.BiggestWinner.MemberID),
				common.FormatSignedPoints(report.BiggestWinner.Profit())),
		})
	}
	if lines := payoutLines(report.Payouts); lines != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Payouts", Value: lines})
	}
	return embed
}

// BuildRefundEmbed announces a refunded or expired round
func BuildRefundEmbed(report *models.RefundReport) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("↩️ %s refunded", report.Title),
		Color:     common.ColorWarning,
		Timestamp: report.RefundedAt.Format(time.RFC3339),
		Description: fmt.Sprintf("%s returned to %d members.",
			common.FormatPoints(report.Total), len(report.Refunds)),
	}
	if report.Expired {
		embed.Title = fmt.Sprintf("⌛ %s expired", report.Title)
		embed.Description = "No winner was declared in time. " + embed.Description
	}
	if lines := payoutLines(report.Refunds); lines != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Refunds", Value: lines})
	}
	return embed
}

// BuildResultEmbed shows the outcome of the previous round
func BuildResultEmbed(result *models.RoundResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("📜 %s", result.Title),
		Color:     common.ColorInfo,
		Timestamp: result.FinishedAt.Format(time.RFC3339),
	}

	switch {
	case result.Payout != nil:
		embed.Description = fmt.Sprintf("Winner: **%s**", result.Payout.WinnerName)
	case result.Refund != nil && result.Refund.Expired:
		embed.Description = "Expired without a winner. Every wager was refunded."
	default:
		embed.Description = "Refunded by an operator."
	}

	if result.Pool == nil {
		return embed
	}
	for i, name := range result.Contenders {
		stakes := result.Pool.StakesFor(i)
		lines := make([]string, 0, len(stakes))
		for _, s := range stakes {
			lines = append(lines, fmt.Sprintf("%s %s", common.GetUserMention(s.MemberID), common.FormatBalance(s.Amount)))
		}
		value := "No wagers"
		if len(lines) > 0 {
			value = truncateLines(lines, maxListedPayouts)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("#%d %s (%s)", i+1, name, common.FormatPoints(result.Pool.TotalFor(i))),
			Value:  value,
			Inline: true,
		})
	}
	return embed
}

// BuildWagerListEmbed lists the wagers of the running round
func BuildWagerListEmbed(title string, listings []service.WagerListing) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📋 Wagers on %s", title),
		Color: common.ColorInfo,
	}
	if len(listings) == 0 {
		embed.Description = "No wagers yet."
		return embed
	}

	lines := make([]string, 0, len(listings))
	for _, l := range listings {
		lines = append(lines, fmt.Sprintf("%s → #%d %s: %s",
			common.GetUserMention(l.MemberID), l.ContenderNumber, l.ContenderName, common.FormatBalance(l.Amount)))
	}
	embed.Description = strings.Join(lines, "\n")
	return embed
}

func payoutLines(payouts []models.MemberPayout) string {
	if len(payouts) == 0 {
		return ""
	}
	sorted := make([]models.MemberPayout, len(payouts))
	copy(sorted, payouts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Payout > sorted[b].Payout })

	lines := make([]string, 0, len(sorted))
	for _, p := range sorted {
		lines = append(lines, fmt.Sprintf("%s %s", common.GetUserMention(p.MemberID), common.FormatPoints(p.Payout)))
	}
	return truncateLines(lines, maxListedPayouts)
}

func truncateLines(lines []string, max int) string {
	if len(lines) <= max {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n…and %d more", len(lines)-max)
}
