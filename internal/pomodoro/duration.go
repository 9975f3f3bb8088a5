package pomodoro

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "focusbot/internal/errors"
)

// FormatMinutes renders a minute count as "2 hours 3 mins", pluralising as
// needed and leaving out the hours when there are none.
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0 mins"
	}

	hours := minutes / 60
	minutes = minutes % 60

	parts := make([]string, 0, 2)
	switch {
	case hours == 1:
		parts = append(parts, "1 hour")
	case hours > 1:
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	}
	switch {
	case minutes == 1:
		parts = append(parts, "1 min")
	case minutes > 1:
		parts = append(parts, fmt.Sprintf("%d mins", minutes))
	}
	return strings.Join(parts, " ")
}

// MinutesBetween returns |a-b| rounded up to the next whole minute.
func MinutesBetween(a, b time.Time) (int, error) {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	// Sub saturates instead of overflowing, so a saturated value means the
	// real difference is not representable.
	if diff == math.MaxInt64 || diff < 0 {
		return 0, apperrors.Internal("time difference too large")
	}

	millis := diff.Milliseconds()
	minutes := (millis + 59_999) / 60_000
	if minutes > math.MaxInt32 {
		return 0, apperrors.Internal("time difference too large")
	}
	return int(minutes), nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
