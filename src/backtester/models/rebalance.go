package models

import "time"

// IsRebalanceDue decides by pure calendar arithmetic whether a rebalancing
// pass is due at current, given the last rebalance date. A zero last date
// means no pass has run yet and any scheduled frequency is due.
func IsRebalanceDue(current time.Time, last time.Time, frequency RebalanceFrequency) bool {
	switch frequency {
	case RebalanceNone:
		return false
	case RebalanceDaily:
		return true
	case RebalanceWeekly:
		if last.IsZero() {
			return true
		}

		currentYear, currentWeek := current.ISOWeek()
		lastYear, lastWeek := last.ISOWeek()
		return currentYear != lastYear || currentWeek != lastWeek
	case RebalanceMonthly:
		if last.IsZero() {
			return true
		}

		return current.Year() != last.Year() || current.Month() != last.Month()
	}

	return false
}
