package repository

import (
	"context"

	"magiclink/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UseRepository interface {
	// Record appends use and, in the same transaction, stamps the parent
	// link's accessed_at if it is still unset. It reports whether it did.
	Record(ctx context.Context, use *entity.Use) (bool, error)
	ListByLink(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]entity.Use, error)
	CountByLink(ctx context.Context, linkID uuid.UUID) (int64, error)
}

type useRepository struct {
	db *gorm.DB
}

func NewUseRepository(db *gorm.DB) UseRepository {
	return &useRepository{db: db}
}

func (r *useRepository) Record(ctx context.Context, use *entity.Use) (bool, error) {
	first := false
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(use).Error; err != nil {
			return err
		}
		result := tx.Model(&entity.Link{}).
			Where("id = ? AND accessed_at IS NULL", use.LinkID).
			Update("accessed_at", use.Timestamp)
		if result.Error != nil {
			return result.Error
		}
		first = result.RowsAffected > 0
		return nil
	})
	return first, err
}

func (r *useRepository) ListByLink(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]entity.Use, error) {
	var uses []entity.Use
	query := conn(ctx, r.db).
		Where("link_id = ?", linkID).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&uses).Error; err != nil {
		return nil, err
	}
	return uses, nil
}

func (r *useRepository) CountByLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&entity.Use{}).
		Where("link_id = ?", linkID).
		Count(&count).Error
	return count, err
}
