package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) (*domain.Setting, error) {
	query := `
		SELECT value, value_type, updated_at
		FROM settings
		WHERE key = $1 AND scope_type = $2 AND scope_id = $3 AND is_active`

	var text, kind string
	s := domain.Setting{Key: key, ScopeType: scopeType, IsActive: true}
	err := r.pool.QueryRow(ctx, query, key, string(scopeType), scopeID).Scan(&text, &kind, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "settingsRepo.Get")
	}

	s.Value, err = domain.DecodeSettingValue(domain.ValueKind(kind), text)
	if err != nil {
		return nil, errors.Wrapf(err, "settingsRepo.Get: decoding %q", key)
	}
	if scopeID != uuid.Nil {
		id := scopeID
		s.ScopeID = &id
	}
	return &s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.Setting) error {
	text, err := s.Value.Encode()
	if err != nil {
		return errors.Wrap(err, "settingsRepo.Upsert.Encode")
	}
	scopeID := uuid.Nil
	if s.ScopeID != nil {
		scopeID = *s.ScopeID
	}

	query := `
		INSERT INTO settings (key, scope_type, scope_id, value, value_type, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6)
		ON CONFLICT (key, scope_type, scope_id)
		DO UPDATE SET value = EXCLUDED.value, value_type = EXCLUDED.value_type,
			is_active = true, updated_at = EXCLUDED.updated_at`
	_, err = r.pool.Exec(ctx, query, s.Key, string(s.ScopeType), scopeID, text, string(s.Value.Kind), s.UpdatedAt)
	if err != nil {
		return wrap(err, "settingsRepo.Upsert")
	}
	s.IsActive = true
	return nil
}

func (r *SettingsRepo) Deactivate(ctx context.Context, key string, scopeType domain.ScopeType, scopeID uuid.UUID) error {
	query := `
		UPDATE settings SET is_active = false, updated_at = now()
		WHERE key = $1 AND scope_type = $2 AND scope_id = $3 AND is_active`
	tag, err := r.pool.Exec(ctx, query, key, string(scopeType), scopeID)
	if err != nil {
		return wrap(err, "settingsRepo.Deactivate")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotApplied
	}
	return nil
}
