package moderation

import (
	"fmt"
	"strings"

	"warden/pkg/model"
)

// DurationTokens lists the selectable ban durations in menu order.
// "Permanent" maps to a negative sentinel meaning no expiry.
var DurationTokens = []string{"1h", "6h", "1d", "3d", "7d", "30d", "Permanent"}

// DurationTable maps a duration token to its length in milliseconds.
var DurationTable = map[string]int64{
	"1h":        60 * 60 * 1000,
	"6h":        6 * 60 * 60 * 1000,
	"1d":        24 * 60 * 60 * 1000,
	"3d":        3 * 24 * 60 * 60 * 1000,
	"7d":        AutoBanDuration,
	"30d":       30 * 24 * 60 * 60 * 1000,
	"Permanent": -1,
}

// DefaultReasons is the built-in reason preset list, overridable by policy.
var DefaultReasons = []string{
	"Hacking/Cheating",
	"Griefing",
	"Spamming",
	"Harassment",
	"Advertising",
	"Bug abuse",
	"Other",
}

// FormatBanMessage renders the explanation shown to a rejected or
// disconnected session. Every rejection path uses this one function so the
// fields always appear in the same order: reason, issuer, duration, record
// id.
func FormatBanMessage(ban *model.Ban, nowMillis int64) string {
	return fmt.Sprintf(
		"You are banned from this server.\nReason: %s\nBy: %s\nDuration: %s\nBan #%d",
		ban.Reason, ban.IssuedBy, FormatDuration(ban.Remaining(nowMillis)), ban.ID)
}

// FormatDuration renders a remaining duration in milliseconds as a human
// string using the two coarsest non-zero units, e.g. "2 days, 3 hours" or
// "45 minutes". Negative durations mean no expiry and render as "Permanent".
func FormatDuration(millis int64) string {
	if millis < 0 {
		return "Permanent"
	}
	seconds := millis / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return joinUnits(plural(days, "day"), plural(hours%24, "hour"))
	case hours > 0:
		return joinUnits(plural(hours, "hour"), plural(minutes%60, "minute"))
	case minutes > 0:
		return plural(minutes, "minute")
	case seconds > 0:
		return plural(seconds, "second")
	default:
		return "0 seconds"
	}
}

func joinUnits(coarse, fine string) string {
	if fine == "" {
		return coarse
	}
	return coarse + ", " + fine
}

func plural(n int64, unit string) string {
	if n == 0 {
		return ""
	}
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ParseDurationToken maps a duration token to milliseconds and a permanence
// flag. The match is case-insensitive.
func ParseDurationToken(token string) (millis int64, permanent bool, ok bool) {
	for name, value := range DurationTable {
		if strings.EqualFold(name, token) {
			if value < 0 {
				return 0, true, true
			}
			return value, false, true
		}
	}
	return 0, false, false
}
