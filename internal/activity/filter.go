package activity

import "time"

// FilterByDateRange keeps entries created within [from, to]. Either bound
// may be nil; with both nil the input is returned unchanged.
func FilterByDateRange(logs []Entry, from, to *time.Time) []Entry {
	if from == nil && to == nil {
		return logs
	}
	out := make([]Entry, 0, len(logs))
	for _, e := range logs {
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && e.CreatedAt.After(*to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterByAction keeps entries whose action equals action. An empty action
// or "all" returns the input unchanged.
func FilterByAction(logs []Entry, action string) []Entry {
	if action == "" || action == "all" {
		return logs
	}
	out := make([]Entry, 0, len(logs))
	for _, e := range logs {
		if string(e.Action) == action {
			out = append(out, e)
		}
	}
	return out
}
