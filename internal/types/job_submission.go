package types

import (
	"time"

	"github.com/google/uuid"
)

// JobSubmission records who submitted an item-creation job. The poll path
// uses it to bind the eventual ownership row to the submitter, so a poll by
// any other user never claims the item.
type JobSubmission struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_job_submission_job" json:"job_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (JobSubmission) TableName() string { return "job_submission" }
