package domain

import (
	"sort"
	"time"
)

// TaskView is a task annotated with its derived status at read time.
type TaskView struct {
	*Task
	EffectiveStatus Status `json:"effective_status"`
	IsOverdue       bool   `json:"is_overdue"`
}

// PageInfo describes the slice of a sorted collection returned by Paginate.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// TaskPage is one page of annotated tasks.
type TaskPage struct {
	Items []TaskView `json:"items"`
	PageInfo
}

// NewTaskView annotates t as of now.
func NewTaskView(t *Task, now time.Time) TaskView {
	return TaskView{
		Task:            t,
		EffectiveStatus: EffectiveStatus(t, now),
		IsOverdue:       IsOverdue(t, now),
	}
}

var statusRank = map[Status]int{
	StatusOverdue:   0,
	StatusPending:   1,
	StatusSubmitted: 2,
	StatusCompleted: 3,
}

const unknownStatusRank = 4

func rankOf(s Status) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return unknownStatusRank
}

// SortTasks returns annotated tasks ordered by effective status (Overdue,
// Pending, Submitted, Completed, then anything else), priority descending,
// deadline ascending and finally ID ascending. The input is not modified.
func SortTasks(tasks []*Task, now time.Time) []TaskView {
	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = NewTaskView(t, now)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if ra, rb := rankOf(a.EffectiveStatus), rankOf(b.EffectiveStatus); ra != rb {
			return ra < rb
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.ID < b.ID
	})

	return views
}

// Paginate slices a sorted collection. Page and limit below 1 are clamped to
// 1. A page past the end yields no items and HasMore=false.
func Paginate(sorted []TaskView, page, limit int) TaskPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	total := len(sorted)
	info := PageInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		HasMore:    page*limit < total,
	}

	start := (page - 1) * limit
	if start >= total {
		return TaskPage{Items: []TaskView{}, PageInfo: info}
	}
	end := start + limit
	if end > total {
		end = total
	}

	items := make([]TaskView, end-start)
	copy(items, sorted[start:end])
	return TaskPage{Items: items, PageInfo: info}
}

// SortAndPaginate orders tasks as of now and returns the requested page.
func SortAndPaginate(tasks []*Task, now time.Time, page, limit int) TaskPage {
	return Paginate(SortTasks(tasks, now), page, limit)
}
