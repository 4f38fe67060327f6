package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/types"
)

type ThreadMemberRepo interface {
	Create(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (*types.ThreadMember, error)
	IsMember(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]uuid.UUID, error)
	ListThreadsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
}

type threadMemberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadMemberRepo(db *gorm.DB, baseLog *logger.Logger) ThreadMemberRepo {
	repoLog := baseLog.With("repo", "ThreadMemberRepo")
	return &threadMemberRepo{db: db, log: repoLog}
}

func (r *threadMemberRepo) Create(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (*types.ThreadMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.ThreadMember{
		ID:       uuid.New(),
		ThreadID: threadID,
		UserID:   userID,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *threadMemberRepo) IsMember(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ThreadMember{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *threadMemberRepo) ListMembers(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.ThreadMember
	if err := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids, nil
}

func (r *threadMemberRepo) ListThreadsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.ThreadMember
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ThreadID)
	}
	return ids, nil
}
