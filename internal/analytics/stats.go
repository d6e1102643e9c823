package analytics

// GlobalStats summarizes a set of sessions.
type GlobalStats struct {
	TotalSessions         int     `json:"total_sessions"`
	DistinctActiveTenants int     `json:"distinct_active_tenants"`
	AverageSessionLength  float64 `json:"average_session_length"`
}

// ComputeStats derives global counts from sessions. tenants is the
// set of tenants seen while scanning, which may include tenants
// without a session in the window.
func ComputeStats(
	sessions []SessionSummary, tenants map[string]struct{},
) GlobalStats {
	stats := GlobalStats{
		TotalSessions:         len(sessions),
		DistinctActiveTenants: len(tenants),
	}
	if len(sessions) == 0 {
		return stats
	}
	total := 0
	for _, s := range sessions {
		total += s.MessageCount
	}
	stats.AverageSessionLength = float64(total) / float64(len(sessions))
	return stats
}
