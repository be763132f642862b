package admin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ByEmail(ctx context.Context, email string) (*Admin, error) {
	var a Admin
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, full_name, role, is_active
		FROM admins WHERE email = $1 AND is_active = true`, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Role, &a.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
