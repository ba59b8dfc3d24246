package schedule

import (
	"time"

	"lister/internal/config"
)

// DistributeSlots spreads n upload timestamps across clock hours starting
// at start. No hour receives more than hourlyLimit items, the batch spans
// the minimum number of hours, and items are evenly spaced inside an hour.
// When n cannot fit inside windowHours at the hourly limit, the final hour
// is oversubscribed rather than failing the call.
func DistributeSlots(n int, start time.Time, hourlyLimit, windowHours int) []time.Time {
	if n <= 0 {
		return nil
	}
	if hourlyLimit <= 0 {
		hourlyLimit = 1
	}
	if windowHours <= 0 {
		windowHours = 1
	}

	requiredHours := ceilDiv(n, hourlyLimit)
	if requiredHours > windowHours {
		requiredHours = windowHours
	}
	itemsPerHour := ceilDiv(n, requiredHours)
	if itemsPerHour > hourlyLimit {
		itemsPerHour = hourlyLimit
	}

	secondsPerItem := 3600 / itemsPerHour
	if secondsPerItem < 1 {
		secondsPerItem = 1
	}

	slots := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		hourIndex := i / itemsPerHour
		position := i % itemsPerHour
		if hourIndex >= windowHours {
			// Overflow: pile the remainder onto the final hour, keeping
			// the offsets strictly increasing.
			overflow := i - windowHours*itemsPerHour
			hourIndex = windowHours - 1
			position = itemsPerHour + overflow
		}
		offset := time.Duration(position*secondsPerItem) * time.Second
		slots = append(slots, start.Add(time.Duration(hourIndex)*time.Hour).Add(offset))
	}
	return slots
}

// NextBusinessStart returns the next day's business-hours opening relative
// to now, in now's location.
func NextBusinessStart(now time.Time, hours config.BusinessHours) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), hours.StartHour, 0, 0, 0, now.Location())
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
