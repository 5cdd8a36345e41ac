package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

const taskColumns = `id, title, description, assignee_id, assigner_id, priority, deadline,
	created_at, submitted_at, submission_file_id, submission_score, score, status,
	reminder_sent, overdue_notification_sent`

// PostgresTaskStore implements store.TaskStore using PostgreSQL. Mutations
// run in a transaction that locks the row with SELECT ... FOR UPDATE, and flag
// claims are single conditional UPDATE statements.
type PostgresTaskStore struct {
	db *sql.DB
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t           domain.Task
		priority    int16
		status      string
		submittedAt sql.NullTime
		fileID      sql.NullString
		subScore    sql.NullInt16
		score       sql.NullFloat64
	)

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.AssigneeID, &t.AssignerID, &priority, &t.Deadline,
		&t.CreatedAt, &submittedAt, &fileID, &subScore, &score, &status,
		&t.ReminderSent, &t.OverdueNotificationSent,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	if submittedAt.Valid {
		v := submittedAt.Time
		t.SubmittedAt = &v
	}
	if fileID.Valid {
		v := fileID.String
		t.SubmissionFileID = &v
	}
	if subScore.Valid {
		v := int(subScore.Int16)
		t.SubmissionScore = &v
	}
	if score.Valid {
		v := score.Float64
		t.Score = &v
	}
	return &t, nil
}

func nullableFields(t *domain.Task) (sql.NullTime, sql.NullString, sql.NullInt16, sql.NullFloat64) {
	var (
		submittedAt sql.NullTime
		fileID      sql.NullString
		subScore    sql.NullInt16
		score       sql.NullFloat64
	)
	if t.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *t.SubmittedAt, Valid: true}
	}
	if t.SubmissionFileID != nil {
		fileID = sql.NullString{String: *t.SubmissionFileID, Valid: true}
	}
	if t.SubmissionScore != nil {
		subScore = sql.NullInt16{Int16: int16(*t.SubmissionScore), Valid: true}
	}
	if t.Score != nil {
		score = sql.NullFloat64{Float64: *t.Score, Valid: true}
	}
	return submittedAt, fileID, subScore, score
}

// Create inserts task and sets its ID from the sequence.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, slog.Default())

	if err := task.Validate(); err != nil {
		return err
	}

	submittedAt, fileID, subScore, score := nullableFields(task)
	query := `
		INSERT INTO tasks (title, description, assignee_id, assigner_id, priority, deadline,
			created_at, submitted_at, submission_file_id, submission_score, score, status,
			reminder_sent, overdue_notification_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		task.Title, task.Description, task.AssigneeID, task.AssignerID, int16(task.Priority), task.Deadline,
		task.CreatedAt, submittedAt, fileID, subScore, score, string(task.Status),
		task.ReminderSent, task.OverdueNotificationSent,
	).Scan(&task.ID)
	if err != nil {
		log.Error("failed to insert task",
			slog.Int64("assignee_id", task.AssigneeID),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}

	return nil
}

// GetByID retrieves a task by ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "get", "failed to load task", MapError(err))
	}
	return task, nil
}

// List returns tasks matching filter ordered by ID.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE ($1::bigint = 0 OR assignee_id = $1::bigint) AND ($2::bigint = 0 OR assigner_id = $2::bigint)
		ORDER BY id`
	return s.queryTasks(ctx, "list", query, filter.AssigneeID, filter.AssignerID)
}

// Update locks the row, applies fn and writes every mutable column back.
func (s *PostgresTaskStore) Update(ctx context.Context, id int64, fn store.TaskMutation) (*domain.Task, error) {
	var updated *domain.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		task, err := lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}

		submittedAt, fileID, subScore, score := nullableFields(task)
		query := `
			UPDATE tasks
			SET title = $2, description = $3, assignee_id = $4, assigner_id = $5, priority = $6,
				deadline = $7, submitted_at = $8, submission_file_id = $9, submission_score = $10,
				score = $11, status = $12, reminder_sent = $13, overdue_notification_sent = $14
			WHERE id = $1
		`
		_, err = tx.ExecContext(ctx, query,
			id, task.Title, task.Description, task.AssigneeID, task.AssignerID, int16(task.Priority),
			task.Deadline, submittedAt, fileID, subScore,
			score, string(task.Status), task.ReminderSent, task.OverdueNotificationSent,
		)
		if err != nil {
			return store.NewStoreError("task", "update", "failed to write task", MapError(err))
		}

		task.ID = id
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete locks the row, runs check and removes the task.
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64, check func(t *domain.Task) error) (*domain.Task, error) {
	var deleted *domain.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		task, err := lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(task); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
			return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
		}
		deleted = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// FindReminderCandidates returns Pending, unreminded tasks due within [from, to].
func (s *PostgresTaskStore) FindReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = 'pending' AND reminder_sent = FALSE AND deadline BETWEEN $1 AND $2
		ORDER BY deadline, id`
	return s.queryTasks(ctx, "find reminder candidates", query, from, to)
}

// FindOverdueCandidates returns Pending tasks past deadline without an overdue notification.
func (s *PostgresTaskStore) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = 'pending' AND overdue_notification_sent = FALSE AND deadline < $1
		ORDER BY deadline, id`
	return s.queryTasks(ctx, "find overdue candidates", query, now)
}

// MarkReminderSent claims the reminder flag with a conditional update.
func (s *PostgresTaskStore) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	return s.claim(ctx, "reminder_sent", `
		UPDATE tasks SET reminder_sent = TRUE
		WHERE id = $1 AND reminder_sent = FALSE AND status = 'pending'
	`, id)
}

// MarkOverdueNotified claims the overdue notification flag with a conditional update.
func (s *PostgresTaskStore) MarkOverdueNotified(ctx context.Context, id int64) (bool, error) {
	return s.claim(ctx, "overdue_notification_sent", `
		UPDATE tasks SET overdue_notification_sent = TRUE
		WHERE id = $1 AND overdue_notification_sent = FALSE AND status = 'pending'
	`, id)
}

func (s *PostgresTaskStore) claim(ctx context.Context, flag, query string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, store.NewStoreError("task", "claim "+flag, "failed to claim flag", MapError(err))
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, store.NewStoreError("task", "claim "+flag, "failed to claim flag", err)
	}
	return n == 1, nil
}

func lockTask(ctx context.Context, tx *sql.Tx, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`
	task, err := scanTask(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "lock", "failed to lock task", MapError(err))
	}
	return task, nil
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, op, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("task", op, "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", op, "failed to scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", op, "row iteration failed", MapError(err))
	}
	return tasks, nil
}
