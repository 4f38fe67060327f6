package types

import (
	"time"

	"github.com/google/uuid"
)

type AddressOwner struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AddressID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_address_owner_address" json:"address_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (AddressOwner) TableName() string { return "address_owner" }
