package types

import (
	"time"

	"github.com/google/uuid"
)

// ItemOwner is the composite-owned relation tying a remote item to the user
// that created it. The remote item service has no concept of a user, so this
// row is the sole source of truth for who may mutate an item.
type ItemOwner struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_item_owner_item" json:"item_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ItemOwner) TableName() string { return "item_owner" }
