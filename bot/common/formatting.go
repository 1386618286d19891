package common

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatBalance formats an amount with thousand separators
func FormatBalance(balance int64) string {
	return printer.Sprintf("%d", balance)
}

// FormatPoints formats an amount followed by the currency name
func FormatPoints(amount int64) string {
	return FormatBalance(amount) + " " + PointsUnit
}

// FormatSignedPoints formats a change with an explicit sign
func FormatSignedPoints(delta int64) string {
	if delta > 0 {
		return "+" + FormatPoints(delta)
	}
	return FormatPoints(delta)
}

// FormatPercentage formats a share already scaled to 0-100
func FormatPercentage(pct float64) string {
	return printer.Sprintf("%.2f%%", pct)
}

// FormatOdds formats a gross return multiplier, "-" when nobody has backed the side
func FormatOdds(odds float64) string {
	if odds <= 0 {
		return "-"
	}
	return printer.Sprintf("%.2fx", odds)
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// FormatDuration formats a duration like "1h 30m" or "45s"
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}
