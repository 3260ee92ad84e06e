package seed

import "strings"

// Classify maps a free-text entry description onto the closed reason set.
//
// Grant descriptions written by the accrual engine start with the category
// label (see ReasonCategory.Label), but historic rows and debit descriptions
// are free text, so matching is substring-based and case-insensitive.
// Kept separate from accrual logic so the mapping can evolve independently.
func Classify(description string) ReasonCategory {
	d := strings.ToLower(description)

	switch {
	case strings.Contains(d, "composite score"), strings.Contains(d, "total score"):
		return ReasonTotalScore
	case strings.Contains(d, "drive duration"), strings.Contains(d, "driving time"),
		strings.Contains(d, "event not occurred"):
		return ReasonEventNotOccurred
	case strings.Contains(d, "behavior improved"), strings.Contains(d, "behavior improvement"):
		return ReasonBehaviorImproved
	default:
		return ReasonUnknown
	}
}
