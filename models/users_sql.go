package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"eventreg/utils"
)

type sqlUserRepo struct{ db *sql.DB }

func NewSQLUserRepository(db *sql.DB) UserRepository { return &sqlUserRepo{db} }

// Create hashes u.Password in place before storing it.
func (r *sqlUserRepo) Create(ctx context.Context, u *User) error {
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO admins(email, password) VALUES ($1, $2) RETURNING id`, u.Email, u.Password,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return storageErr("create admin", err)
	}
	return nil
}

func (r *sqlUserRepo) ValidateCredentials(ctx context.Context, email, plain string) (User, error) {
	u, err := r.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !utils.CheckPasswordHash(plain, u.Password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *sqlUserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password FROM admins WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, storageErr("get admin", err)
	}
	return u, nil
}
