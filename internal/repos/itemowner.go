package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/types"
)

type ItemOwnerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (*types.ItemOwner, error)
	GetOwner(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (uuid.UUID, error)
	GetOwnersBatch(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]uuid.UUID, error)
	VerifyOwnership(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
}

type itemOwnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemOwnerRepo(db *gorm.DB, baseLog *logger.Logger) ItemOwnerRepo {
	repoLog := baseLog.With("repo", "ItemOwnerRepo")
	return &itemOwnerRepo{db: db, log: repoLog}
}

func (r *itemOwnerRepo) Create(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (*types.ItemOwner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.ItemOwner{
		ID:     uuid.New(),
		ItemID: itemID,
		UserID: userID,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *itemOwnerRepo) GetOwner(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ItemOwner
	if err := transaction.WithContext(ctx).
		Where("item_id = ?", itemID).
		First(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}

// GetOwnersBatch returns a mapping with only the items that have an owner
// relation; absent ids are simply missing, never an error.
func (r *itemOwnerRepo) GetOwnersBatch(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	result := make(map[uuid.UUID]uuid.UUID, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	var rows []types.ItemOwner
	if err := transaction.WithContext(ctx).
		Where("item_id IN ?", itemIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ItemID] = row.UserID
	}
	return result, nil
}

func (r *itemOwnerRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.ItemOwner
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Offset(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ItemID)
	}
	return ids, nil
}

func (r *itemOwnerRepo) VerifyOwnership(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ItemOwner{}).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *itemOwnerRepo) Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("item_id = ?", itemID).
		Delete(&types.ItemOwner{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
