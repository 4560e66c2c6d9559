package rules

import "time"

// AgeAt returns the calendar age in whole years at now. The second result is
// false when the birthday is missing or lies in the future.
func AgeAt(birthday, now time.Time) (int, bool) {
	if birthday.IsZero() {
		return 0, false
	}

	b := birthday.UTC()
	n := now.UTC()
	if b.After(n) {
		return 0, false
	}

	age := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		age--
	}
	return age, true
}
