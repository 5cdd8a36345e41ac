package domain

import "time"

// Submission scores.
const (
	ScoreEarly = 1
	ScoreOnDay = 0
	ScoreLate  = -1
)

// ScoreSubmission compares the local calendar days of deadline and
// submittedAt: an earlier day scores +1, the same day 0, a later day -1.
func ScoreSubmission(deadline, submittedAt time.Time) int {
	return ScoreSubmissionIn(time.Local, deadline, submittedAt)
}

// ScoreSubmissionIn is ScoreSubmission with calendar days taken in loc.
func ScoreSubmissionIn(loc *time.Location, deadline, submittedAt time.Time) int {
	if loc == nil {
		loc = time.Local
	}
	deadlineDay := StartOfDay(deadline, loc)
	submittedDay := StartOfDay(submittedAt, loc)

	switch {
	case submittedDay.Before(deadlineDay):
		return ScoreEarly
	case submittedDay.Equal(deadlineDay):
		return ScoreOnDay
	default:
		return ScoreLate
	}
}

// StartOfDay returns midnight of ts's calendar day in loc.
func StartOfDay(ts time.Time, loc *time.Location) time.Time {
	local := ts.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of ts's calendar day in loc.
func EndOfDay(ts time.Time, loc *time.Location) time.Time {
	return StartOfDay(ts, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
