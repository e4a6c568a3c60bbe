package common

import (
	"fmt"
	"unicode/utf8"
)

// PrivateChannel returns the deterministic private channel name of a user.
func PrivateChannel(userID int64) string {
	return fmt.Sprintf("%s%d", PrivateChannelPrefix, userID)
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// something was cut off.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
