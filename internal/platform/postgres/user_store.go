package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// PostgresUserStore implements store.UserDirectory over the users table.
type PostgresUserStore struct {
	db store.DBTX
}

var _ store.UserDirectory = (*PostgresUserStore)(nil)

// NewPostgresUserStore creates a user directory backed by db.
func NewPostgresUserStore(db store.DBTX) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// FindUser returns store.ErrUserNotFound when no row matches.
func (s *PostgresUserStore) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("user", "get", "failed to load user", MapError(err))
	}
	return &u, nil
}
