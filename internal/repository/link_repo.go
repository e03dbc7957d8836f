package repository

import (
	"context"
	"errors"
	"time"

	"magiclink/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LinkFilter struct {
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// ConsumeFunc runs inside the consume transaction with the locked link.
// Returning an error rolls the consumption back.
type ConsumeFunc func(ctx context.Context, link *entity.Link) error

type LinkRepository interface {
	Create(ctx context.Context, link *entity.Link) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Link, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Link, error)
	List(ctx context.Context, filter LinkFilter) ([]entity.Link, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateAll(ctx context.Context) (int64, error)
	Consume(ctx context.Context, id uuid.UUID, now time.Time, fn ConsumeFunc) (*entity.Link, error)
	ReconcileAccessedAt(ctx context.Context, id uuid.UUID) (*time.Time, error)
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *entity.Link) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(link).Error
}

func (r *linkRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Link, error) {
	var link entity.Link
	err := conn(ctx, r.db).
		Where("id = ?", id).
		First(&link).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &link, err
}

func (r *linkRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Link, error) {
	var link entity.Link
	err := conn(ctx, r.db).
		Where("token_hash = ?", tokenHash).
		First(&link).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &link, err
}

func (r *linkRepository) List(ctx context.Context, filter LinkFilter) ([]entity.Link, error) {
	var links []entity.Link
	query := conn(ctx, r.db).Order("created_at DESC")
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).
		Model(&entity.Link{}).
		Where("id = ?", id).
		Update("is_active", false).
		Error
}

// DeactivateAll flips every active link in one statement.
func (r *linkRepository) DeactivateAll(ctx context.Context) (int64, error) {
	result := conn(ctx, r.db).
		Model(&entity.Link{}).
		Where("is_active = ?", true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// Consume locks the link row, applies the consume transition and persists it
// with a compare-and-set on logged_in_at, then runs fn in the same
// transaction. Concurrent callers are serialized on the row; losers see the
// link already consumed. An inactive owner aborts before fn runs.
func (r *linkRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time, fn ConsumeFunc) (*entity.Link, error) {
	var consumed entity.Link
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var link entity.Link
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&link).Error; err != nil {
			return err
		}
		if err := link.Transition(entity.EventConsume, now); err != nil {
			return err
		}

		result := tx.Model(&entity.Link{}).
			Where("id = ? AND logged_in_at IS NULL AND is_active = ?", id, true).
			Updates(map[string]any{
				"logged_in_at": link.LoggedInAt,
				"is_active":    false,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return entity.ErrLinkUsed
		}

		if err := tx.Where("id = ?", link.UserID).Take(&link.User).Error; err != nil {
			return err
		}
		if !link.User.IsActive {
			return entity.ErrUserInactive
		}
		if fn != nil {
			if err := fn(WithTx(ctx, tx), &link); err != nil {
				return err
			}
		}
		consumed = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &consumed, nil
}

// ReconcileAccessedAt rewrites accessed_at from the use log, which is the
// source of truth: the earliest use timestamp, or NULL without uses.
func (r *linkRepository) ReconcileAccessedAt(ctx context.Context, id uuid.UUID) (*time.Time, error) {
	var accessedAt *time.Time
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var earliest []entity.Use
		if err := tx.Where("link_id = ?", id).
			Order("timestamp ASC").
			Limit(1).
			Find(&earliest).Error; err != nil {
			return err
		}
		if len(earliest) > 0 {
			ts := earliest[0].Timestamp
			accessedAt = &ts
		}
		result := tx.Model(&entity.Link{}).
			Where("id = ?", id).
			Update("accessed_at", accessedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return accessedAt, err
}
