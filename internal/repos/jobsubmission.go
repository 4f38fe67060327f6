package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/types"
)

type JobSubmissionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, jobID, userID uuid.UUID) (*types.JobSubmission, error)
	GetSubmitter(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (uuid.UUID, error)
}

type jobSubmissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) JobSubmissionRepo {
	repoLog := baseLog.With("repo", "JobSubmissionRepo")
	return &jobSubmissionRepo{db: db, log: repoLog}
}

func (r *jobSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, jobID, userID uuid.UUID) (*types.JobSubmission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.JobSubmission{
		ID:     uuid.New(),
		JobID:  jobID,
		UserID: userID,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *jobSubmissionRepo) GetSubmitter(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.JobSubmission
	if err := transaction.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}
