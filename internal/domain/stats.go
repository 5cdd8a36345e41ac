package domain

import "math"

// UserStats is a projection over the tasks assigned to one user. It is
// always derivable from the task collection and is never stored as truth.
type UserStats struct {
	UserID         int64   `json:"user_id"`
	TotalAssigned  int     `json:"total_assigned"`
	TotalCompleted int     `json:"total_completed"`
	AverageScore   float64 `json:"average_score"`
	OnTime         int     `json:"on_time"`
	Late           int     `json:"late"`
}

// ComputeUserStats aggregates the tasks assigned to userID. Tasks belonging
// to other assignees are ignored. Only Completed tasks count toward OnTime and
// Late. A submission exactly at the deadline counts as on time.
func ComputeUserStats(userID int64, tasks []*Task) UserStats {
	stats := UserStats{UserID: userID}
	var scoreSum float64

	for _, t := range tasks {
		if t.AssigneeID != userID {
			continue
		}
		stats.TotalAssigned++

		if t.Status == StatusCompleted {
			stats.TotalCompleted++
			if t.Score != nil {
				scoreSum += *t.Score
			}
			if t.SubmittedAt != nil {
				if t.SubmittedAt.After(t.Deadline) {
					stats.Late++
				} else {
					stats.OnTime++
				}
			}
		}
	}

	if stats.TotalCompleted > 0 {
		stats.AverageScore = roundOneDecimal(scoreSum / float64(stats.TotalCompleted))
	}

	return stats
}

func roundOneDecimal(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}
