package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/vedran77/pulse/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSnapshot, error) {
	query := `SELECT id, email, first_name, last_name FROM users WHERE id = $1`
	var u domain.UserSnapshot
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "userRepo.GetByID")
	}
	return &u, nil
}

func (r *UserRepo) ListExcept(ctx context.Context, id uuid.UUID) ([]domain.UserSnapshot, error) {
	query := `SELECT id, email, first_name, last_name FROM users WHERE id <> $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, wrap(err, "userRepo.ListExcept")
	}
	defer rows.Close()

	var users []domain.UserSnapshot
	for rows.Next() {
		var u domain.UserSnapshot
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			return nil, wrap(err, "userRepo.ListExcept.Scan")
		}
		users = append(users, u)
	}
	return users, wrap(rows.Err(), "userRepo.ListExcept.Rows")
}
