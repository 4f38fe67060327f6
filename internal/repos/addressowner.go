package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/types"
)

type AddressOwnerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*types.AddressOwner, error)
	GetOwner(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) (uuid.UUID, error)
	ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	VerifyOwnership(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) error
}

type addressOwnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAddressOwnerRepo(db *gorm.DB, baseLog *logger.Logger) AddressOwnerRepo {
	repoLog := baseLog.With("repo", "AddressOwnerRepo")
	return &addressOwnerRepo{db: db, log: repoLog}
}

func (r *addressOwnerRepo) Create(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*types.AddressOwner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.AddressOwner{
		ID:        uuid.New(),
		AddressID: addressID,
		UserID:    userID,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *addressOwnerRepo) GetOwner(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) (uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.AddressOwner
	if err := transaction.WithContext(ctx).
		Where("address_id = ?", addressID).
		First(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}

func (r *addressOwnerRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.AddressOwner
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AddressID)
	}
	return ids, nil
}

func (r *addressOwnerRepo) VerifyOwnership(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.AddressOwner{}).
		Where("address_id = ? AND user_id = ?", addressID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *addressOwnerRepo) Delete(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("address_id = ?", addressID).
		Delete(&types.AddressOwner{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
