package models

import (
	"context"
	"database/sql"
	"time"
)

type sqlUserRepo struct{ db *sql.DB }

func NewSQLUserRepository(db *sql.DB) UserRepository { return &sqlUserRepo{db} }

const userColumns = `id, name, email, phone, password_hash, is_admin, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var deleted sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt, &deleted)
	if err != nil {
		return User{}, translate(err)
	}
	if deleted.Valid {
		u.DeletedAt = &deleted.Time
	}
	return u, nil
}

// Create expects PasswordHash to be set already. Duplicate email → ErrDuplicate.
func (r *sqlUserRepo) Create(ctx context.Context, u *User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users(name, email, phone, password_hash, is_admin)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.Phone, u.PasswordHash, u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (r *sqlUserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1 AND deleted_at IS NULL`, id))
}

func (r *sqlUserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1) AND deleted_at IS NULL`, email))
}

func (r *sqlUserRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *sqlUserRepo) Update(ctx context.Context, u *User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET name=$2, email=$3, phone=$4, password_hash=$5, is_admin=$6, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING updated_at`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.IsAdmin,
	).Scan(&u.UpdatedAt)
	return translate(err)
}

func (r *sqlUserRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return translate(err)
	}
	return requireOne(res)
}
