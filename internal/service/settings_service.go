package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

// EncryptionRequiredKey is the global setting that switches message
// encryption on or off at runtime. A string value naming an encryption type
// is accepted too.
const EncryptionRequiredKey = "messages.encryption_required"

type SettingsService struct {
	settingsRepo       repository.SettingsRepository
	encryptionRequired bool
	log                *slog.Logger
	now                func() time.Time
}

// NewSettingsService takes the configured encryption default, used while no
// active EncryptionRequiredKey setting exists.
func NewSettingsService(settingsRepo repository.SettingsRepository, encryptionRequired bool, log *slog.Logger) *SettingsService {
	return &SettingsService{
		settingsRepo:       settingsRepo,
		encryptionRequired: encryptionRequired,
		log:                log,
		now:                func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// scopeKey validates a setting identity and returns the scope id as stored.
// Global settings are stored under the nil UUID.
func scopeKey(key string, scopeType domain.ScopeType, scopeID *uuid.UUID) (uuid.UUID, error) {
	if strings.TrimSpace(key) == "" {
		return uuid.Nil, ErrSettingKeyRequired
	}
	if !scopeType.Valid() {
		return uuid.Nil, ErrInvalidScopeType
	}

	hasID := scopeID != nil && *scopeID != uuid.Nil
	if scopeType == domain.ScopeGlobal {
		if hasID {
			return uuid.Nil, ErrScopeIDForbidden
		}
		return uuid.Nil, nil
	}
	if !hasID {
		return uuid.Nil, ErrScopeIDRequired
	}
	return *scopeID, nil
}

// Get returns the active value for the identity. ok is false when there is
// none.
func (s *SettingsService) Get(ctx context.Context, key string, scopeType domain.ScopeType, scopeID *uuid.UUID) (value domain.SettingValue, ok bool, err error) {
	id, err := scopeKey(key, scopeType, scopeID)
	if err != nil {
		return domain.SettingValue{}, false, err
	}

	st, err := s.settingsRepo.Get(ctx, key, scopeType, id)
	if err != nil {
		return domain.SettingValue{}, false, storageErr("settingsService.Get", err)
	}
	if st == nil {
		return domain.SettingValue{}, false, nil
	}
	return st.Value, true, nil
}

// Set writes the value, replacing and reactivating any existing row.
func (s *SettingsService) Set(ctx context.Context, key string, value domain.SettingValue, scopeType domain.ScopeType, scopeID *uuid.UUID) (*domain.Setting, error) {
	id, err := scopeKey(key, scopeType, scopeID)
	if err != nil {
		return nil, err
	}
	if _, err := value.Encode(); err != nil {
		return nil, invalidValue(err)
	}

	st := &domain.Setting{
		Key:       key,
		ScopeType: scopeType,
		Value:     value,
		IsActive:  true,
		UpdatedAt: s.now(),
	}
	if scopeType != domain.ScopeGlobal {
		st.ScopeID = &id
	}

	if err := s.settingsRepo.Upsert(ctx, st); err != nil {
		return nil, storageErr("settingsService.Set", err)
	}
	return st, nil
}

func (s *SettingsService) Deactivate(ctx context.Context, key string, scopeType domain.ScopeType, scopeID *uuid.UUID) error {
	id, err := scopeKey(key, scopeType, scopeID)
	if err != nil {
		return err
	}

	if err := s.settingsRepo.Deactivate(ctx, key, scopeType, id); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return ErrSettingNotFound
		}
		return storageErr("settingsService.Deactivate", err)
	}
	return nil
}

// Bool reads a boolean setting. Absent settings and values of another kind
// yield fallback; "true"/"false" strings are accepted.
func (s *SettingsService) Bool(ctx context.Context, key string, scopeType domain.ScopeType, scopeID *uuid.UUID, fallback bool) (bool, error) {
	v, ok, err := s.Get(ctx, key, scopeType, scopeID)
	if err != nil || !ok {
		return fallback, err
	}

	switch v.Kind {
	case domain.KindBool:
		return v.Bool, nil
	case domain.KindString:
		switch strings.ToLower(strings.TrimSpace(v.String)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	s.log.WarnContext(ctx, "setting is not a boolean, using fallback", "key", key, "kind", v.Kind)
	return fallback, nil
}

// MessageEncryption implements EncryptionPolicy.
func (s *SettingsService) MessageEncryption(ctx context.Context) (domain.EncryptionType, error) {
	v, ok, err := s.Get(ctx, EncryptionRequiredKey, domain.ScopeGlobal, nil)
	if err != nil {
		return "", err
	}

	required := s.encryptionRequired
	if ok {
		switch v.Kind {
		case domain.KindBool:
			required = v.Bool
		case domain.KindString:
			t := domain.EncryptionType(strings.ToLower(strings.TrimSpace(v.String)))
			switch {
			case t == domain.EncryptionInstanceKey:
				required = true
			case t.Valid():
				// e2ee is a placeholder and stores content as given
				required = false
			case t == "true" || t == "false":
				required = t == "true"
			default:
				s.log.WarnContext(ctx, "unrecognised encryption setting, using default", "value", v.String)
			}
		default:
			s.log.WarnContext(ctx, "unrecognised encryption setting, using default", "kind", v.Kind)
		}
	}

	if required {
		return domain.EncryptionInstanceKey, nil
	}
	return domain.EncryptionNone, nil
}
