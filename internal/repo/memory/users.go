package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/raksha/internal/domain/user"
)

// UsersRepo is a process-local user store used by tests and STORE_DRIVER=memory.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User
	byEmail map[string]string
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email := user.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return user.ErrEmailTaken
	}

	u.Email = email
	r.items[u.ID] = clone(u)
	r.byEmail[email] = u.ID

	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(r.items[id]), nil
}

func (r *UsersRepo) Mutate(ctx context.Context, id string, fn func(*user.User) error) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	next := clone(current)
	if err := fn(&next); err != nil {
		return user.User{}, err
	}

	// identity fields are not mutable through this path
	next.ID = current.ID
	next.Email = current.Email
	next.PasswordHash = current.PasswordHash
	next.ExpoPushToken = current.ExpoPushToken

	r.items[id] = next
	return clone(next), nil
}

func (r *UsersRepo) SetPushToken(ctx context.Context, id, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	if token != "" {
		for otherID, other := range r.items {
			if otherID != id && other.ExpoPushToken == token {
				other.ExpoPushToken = ""
				r.items[otherID] = other
			}
		}
	}

	u.ExpoPushToken = token
	r.items[id] = u
	return nil
}

func clone(u user.User) user.User {
	u.TrustedContacts = append(make([]user.TrustedContact, 0, len(u.TrustedContacts)), u.TrustedContacts...)

	if u.CurrentLocation != nil {
		loc := *u.CurrentLocation
		u.CurrentLocation = &loc
	}
	return u
}
