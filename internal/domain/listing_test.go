package domain_test

import (
	"testing"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func listTask(id int64, status domain.Status, priority domain.Priority, deadline time.Time) *domain.Task {
	return &domain.Task{
		ID:         id,
		Title:      "task",
		AssigneeID: 2,
		AssignerID: 1,
		Priority:   priority,
		Deadline:   deadline,
		Status:     status,
	}
}

func statuses(views []domain.TaskView) []domain.Status {
	out := make([]domain.Status, len(views))
	for i, v := range views {
		out[i] = v.EffectiveStatus
	}
	return out
}

func ids(views []domain.TaskView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestSortTasks_StatusRank(t *testing.T) {
	future := listNow.Add(48 * time.Hour)
	past := listNow.Add(-48 * time.Hour)

	tasks := []*domain.Task{
		listTask(1, domain.StatusCompleted, domain.PriorityMedium, past),
		listTask(2, domain.StatusPending, domain.PriorityMedium, past),
		listTask(3, domain.StatusPending, domain.PriorityMedium, future),
		listTask(4, domain.StatusSubmitted, domain.PriorityMedium, future),
	}

	views := domain.SortTasks(tasks, listNow)

	assert.Equal(t, []domain.Status{
		domain.StatusOverdue,
		domain.StatusPending,
		domain.StatusSubmitted,
		domain.StatusCompleted,
	}, statuses(views))
	assert.Equal(t, []int64{2, 3, 4, 1}, ids(views))
	assert.True(t, views[0].IsOverdue)
	assert.False(t, views[3].IsOverdue)

	assert.Equal(t, int64(1), tasks[0].ID, "input order is untouched")
}

func TestSortTasks_UnknownStatusLast(t *testing.T) {
	future := listNow.Add(time.Hour)
	tasks := []*domain.Task{
		listTask(1, domain.Status("archived"), domain.PriorityHigh, future),
		listTask(2, domain.StatusCompleted, domain.PriorityLow, future),
	}

	assert.Equal(t, []int64{2, 1}, ids(domain.SortTasks(tasks, listNow)))
}

func TestSortTasks_PriorityThenDeadlineThenID(t *testing.T) {
	d1 := listNow.Add(24 * time.Hour)
	d2 := listNow.Add(48 * time.Hour)

	tasks := []*domain.Task{
		listTask(10, domain.StatusPending, domain.PriorityLow, d1),
		listTask(11, domain.StatusPending, domain.PriorityHigh, d2),
		listTask(12, domain.StatusPending, domain.PriorityHigh, d1),
		listTask(13, domain.StatusPending, domain.PriorityMedium, d1),
		listTask(9, domain.StatusPending, domain.PriorityHigh, d1),
	}

	views := domain.SortTasks(tasks, listNow)
	assert.Equal(t, []int64{9, 12, 11, 13, 10}, ids(views))
}

func TestSortTasks_HighBeforeLowSameStatus(t *testing.T) {
	deadline := listNow.Add(24 * time.Hour)
	low := listTask(1, domain.StatusPending, domain.PriorityLow, deadline)
	high := listTask(2, domain.StatusPending, domain.PriorityHigh, deadline)

	views := domain.SortTasks([]*domain.Task{low, high}, listNow)
	require.Len(t, views, 2)
	assert.Equal(t, domain.PriorityHigh, views[0].Priority)
}

func TestPaginate(t *testing.T) {
	tasks := make([]*domain.Task, 37)
	for i := range tasks {
		tasks[i] = listTask(int64(i+1), domain.StatusPending, domain.PriorityMedium, listNow.Add(time.Duration(i+1)*time.Hour))
	}
	sorted := domain.SortTasks(tasks, listNow)

	tests := []struct {
		name      string
		page      int
		limit     int
		wantLen   int
		wantFirst int64
		wantPage  int
		wantLimit int
		wantPages int
		hasMore   bool
	}{
		{name: "first page", page: 1, limit: 15, wantLen: 15, wantFirst: 1, wantPage: 1, wantLimit: 15, wantPages: 3, hasMore: true},
		{name: "second page", page: 2, limit: 15, wantLen: 15, wantFirst: 16, wantPage: 2, wantLimit: 15, wantPages: 3, hasMore: true},
		{name: "last page", page: 3, limit: 15, wantLen: 7, wantFirst: 31, wantPage: 3, wantLimit: 15, wantPages: 3, hasMore: false},
		{name: "past the end", page: 4, limit: 15, wantLen: 0, wantPage: 4, wantLimit: 15, wantPages: 3, hasMore: false},
		{name: "clamped page and limit", page: 0, limit: -3, wantLen: 1, wantFirst: 1, wantPage: 1, wantLimit: 1, wantPages: 37, hasMore: true},
		{name: "exact fit", page: 1, limit: 37, wantLen: 37, wantFirst: 1, wantPage: 1, wantLimit: 37, wantPages: 1, hasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := domain.Paginate(sorted, tt.page, tt.limit)

			require.NotNil(t, page.Items)
			assert.Len(t, page.Items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, page.Items[0].ID)
			}
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, 37, page.Total)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, tt.hasMore, page.HasMore)
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	page := domain.SortAndPaginate(nil, listNow, 1, 15)

	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasMore)
}
