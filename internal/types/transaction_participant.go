package types

import (
	"time"

	"github.com/google/uuid"
)

// TransactionParticipant pins the initiator/receiver roles and the items
// involved in a remote transaction. The remote ledger tracks type, status,
// price and timestamps; it does not retain who plays which role, so this row
// decides later authorization (initiator cancels, receiver accepts/rejects).
type TransactionParticipant struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TransactionID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_transaction_participant_txn" json:"transaction_id"`
	InitiatorUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"initiator_user_id"`
	ReceiverUserID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"receiver_user_id"`
	RequestedItemID uuid.UUID  `gorm:"type:uuid;not null;index" json:"requested_item_id"`
	OfferedItemID   *uuid.UUID `gorm:"type:uuid" json:"offered_item_id,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (TransactionParticipant) TableName() string { return "transaction_participant" }
