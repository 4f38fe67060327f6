package types

import (
	"time"

	"github.com/google/uuid"
)

// ThreadMember records membership of a user in a messaging thread. Exactly
// two rows per thread in the current design: author and participant.
type ThreadMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ThreadID  uuid.UUID `gorm:"type:uuid;not null;index:idx_thread_member,unique,priority:1" json:"thread_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_thread_member,unique,priority:2" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ThreadMember) TableName() string { return "thread_member" }
