package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, phone, trusted_contacts, current_location, expo_push_token, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	contacts, location, err := encodeUserDocs(u)
	if err != nil {
		return err
	}

	err = r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, contacts, location, nullableString(u.ExpoPushToken), u.CreatedAt, u.UpdatedAt)
		return e
	})

	if err != nil {
		if IsUniqueViolation(err) && constraintName(err) == "users_email_key" {
			return user.ErrEmailTaken
		}
		return err
	}

	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return e
	})

	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email)))
		return e
	})

	return u, err
}

// Mutate loads the user under a row lock, applies fn and writes the result back
// in the same transaction. An error from fn aborts without writing.
func (r *UsersRepo) Mutate(ctx context.Context, id string, fn func(*user.User) error) (u user.User, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("users.mutate.lock", func() error {
		var e error
		u, e = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		return e
	})
	if err != nil {
		return
	}

	if err = fn(&u); err != nil {
		return
	}

	contacts, location, err := encodeUserDocs(u)
	if err != nil {
		return
	}

	err = r.observe("users.mutate.update", func() error {
		_, e := tx.Exec(ctx, `
			UPDATE users
			SET name = $2,
				phone = $3,
				trusted_contacts = $4,
				current_location = $5,
				updated_at = $6
			WHERE id = $1
		`, u.ID, u.Name, u.Phone, contacts, location, u.UpdatedAt)
		return e
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// SetPushToken assigns token to the user, releasing it from any other holder first.
func (r *UsersRepo) SetPushToken(ctx context.Context, id, token string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("users.push_token.release", func() error {
		_, e := tx.Exec(ctx, `
			UPDATE users SET expo_push_token = NULL, updated_at = NOW()
			WHERE expo_push_token = $1 AND id <> $2
		`, token, id)
		return e
	})
	if err != nil {
		return
	}

	err = r.observe("users.push_token.set", func() error {
		tag, e := tx.Exec(ctx, `
			UPDATE users SET expo_push_token = $2, updated_at = NOW()
			WHERE id = $1
		`, id, nullableString(token))
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u         user.User
		contacts  []byte
		location  []byte
		pushToken *string
	)

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&contacts,
		&location,
		&pushToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	u.TrustedContacts = []user.TrustedContact{}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &u.TrustedContacts); err != nil {
			return user.User{}, fmt.Errorf("decode trusted_contacts: %w", err)
		}
	}

	if len(location) > 0 {
		var loc user.Location
		if err := json.Unmarshal(location, &loc); err != nil {
			return user.User{}, fmt.Errorf("decode current_location: %w", err)
		}
		u.CurrentLocation = &loc
	}

	if pushToken != nil {
		u.ExpoPushToken = *pushToken
	}

	return u, nil
}

func encodeUserDocs(u user.User) (contacts []byte, location []byte, err error) {
	list := u.TrustedContacts
	if list == nil {
		list = []user.TrustedContact{}
	}

	contacts, err = json.Marshal(list)
	if err != nil {
		return nil, nil, err
	}

	if u.CurrentLocation != nil {
		location, err = json.Marshal(u.CurrentLocation)
		if err != nil {
			return nil, nil, err
		}
	}

	return contacts, location, nil
}
