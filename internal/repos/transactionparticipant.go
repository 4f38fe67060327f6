package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/types"
)

type TransactionParticipantRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.TransactionParticipant) (*types.TransactionParticipant, error)
	GetByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*types.TransactionParticipant, error)
	// ListForUser returns rows where the user is initiator or receiver,
	// optionally filtered by requested or offered item.
	ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, itemID *uuid.UUID, skip, limit int) ([]*types.TransactionParticipant, error)
	Delete(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
}

type transactionParticipantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionParticipantRepo(db *gorm.DB, baseLog *logger.Logger) TransactionParticipantRepo {
	repoLog := baseLog.With("repo", "TransactionParticipantRepo")
	return &transactionParticipantRepo{db: db, log: repoLog}
}

func (r *transactionParticipantRepo) Create(ctx context.Context, tx *gorm.DB, row *types.TransactionParticipant) (*types.TransactionParticipant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *transactionParticipantRepo) GetByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*types.TransactionParticipant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.TransactionParticipant
	if err := transaction.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *transactionParticipantRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, itemID *uuid.UUID, skip, limit int) ([]*types.TransactionParticipant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("initiator_user_id = ? OR receiver_user_id = ?", userID, userID)
	if itemID != nil {
		q = q.Where("requested_item_id = ? OR offered_item_id = ?", *itemID, *itemID)
	}
	q = q.Order("created_at ASC").Offset(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*types.TransactionParticipant
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *transactionParticipantRepo) Delete(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Delete(&types.TransactionParticipant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
