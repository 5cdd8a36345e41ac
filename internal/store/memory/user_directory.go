package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// UserDirectory is a fixed set of users, used when no external directory is
// configured and in tests.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

var _ store.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates a directory holding users.
func NewUserDirectory(users ...domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[int64]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *UserDirectory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Remove deletes a user. Tasks referencing it are left alone.
func (d *UserDirectory) Remove(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

// FindUser returns store.ErrUserNotFound for unknown IDs.
func (d *UserDirectory) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}
