package analytics

import (
	"cmp"
	"slices"
	"strings"
)

// Request is a caller query over the conversation store.
type Request struct {
	Window    Window `json:"window"`
	PersonaID string `json:"persona_id,omitempty"`
	Search    string `json:"search,omitempty"`
}

// FilterSessions keeps sessions for personaID (when set) whose
// persona name or last message contains search, ignoring case.
// Empty parameters do not filter.
func FilterSessions(
	sessions []SessionSummary, personaID, search string,
) []SessionSummary {
	needle := strings.ToLower(search)
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		if personaID != "" && s.PersonaID != personaID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(s.PersonaName), needle) &&
			!strings.Contains(strings.ToLower(s.LastMessageContent), needle) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SortByRecent orders sessions by last message time, newest
// first. Ties keep their input order.
func SortByRecent(sessions []SessionSummary) {
	slices.SortStableFunc(sessions, func(a, b SessionSummary) int {
		return cmp.Compare(b.LastMessageTimestamp, a.LastMessageTimestamp)
	})
}
