package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusUploading,
	StatusSuccess,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// dispatchableStatuses are the states the dispatch engine may pick up from.
var dispatchableStatuses = []Status{StatusPending, StatusScheduled}

// activeStatuses count against duplicate-enqueue checks and daily quota.
// Failed and cancelled items release their slot so retries stay possible.
var activeStatuses = []Status{StatusPending, StatusScheduled, StatusUploading, StatusSuccess}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the item lifecycle. Failed items
// are terminal until an operator explicitly requeues them.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Item is one unit of work: upload this ASIN to this platform/account at or
// after the scheduled time. Items are never physically deleted; terminal
// rows remain as the audit trail.
type Item struct {
	ID           int64
	ASIN         string
	Platform     string
	AccountID    string
	Priority     int
	ScheduledAt  time.Time
	Status       Status
	BatchID      string
	ResultData   string
	ErrorMessage string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
