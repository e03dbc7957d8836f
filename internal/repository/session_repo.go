package repository

import (
	"context"
	"errors"
	"time"

	"magiclink/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindActiveByID(ctx context.Context, id uuid.UUID, now time.Time) (*entity.Session, error)
	FindActiveByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.Session, error)
	RotateToken(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return conn(ctx, r.db).Omit("User").Create(s).Error
}

func (r *sessionRepository) FindActiveByID(ctx context.Context, id uuid.UUID, now time.Time) (*entity.Session, error) {
	return r.findActive(ctx, now, "id = ? AND revoked_at IS NULL", id)
}

func (r *sessionRepository) FindActiveByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.Session, error) {
	return r.findActive(ctx, now, "token_hash = ? AND revoked_at IS NULL", hash)
}

// RotateToken swaps the refresh token hash only while oldHash is still
// current, so a refresh token can be redeemed once.
func (r *sessionRepository) RotateToken(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Model(&entity.Session{}).
		Where("id = ? AND token_hash = ? AND revoked_at IS NULL", id, oldHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sessionRepository) findActive(ctx context.Context, now time.Time, query string, args ...any) (*entity.Session, error) {
	var session entity.Session
	err := conn(ctx, r.db).Where(query, args...).First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !session.IsActive(now) {
		return nil, nil
	}
	return &session, nil
}
