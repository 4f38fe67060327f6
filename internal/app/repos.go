package app

import (
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/repos"
)

type Repos struct {
	ItemOwner              repos.ItemOwnerRepo
	AddressOwner           repos.AddressOwnerRepo
	TransactionParticipant repos.TransactionParticipantRepo
	ThreadMember           repos.ThreadMemberRepo
	JobSubmission          repos.JobSubmissionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ItemOwner:              repos.NewItemOwnerRepo(db, log),
		AddressOwner:           repos.NewAddressOwnerRepo(db, log),
		TransactionParticipant: repos.NewTransactionParticipantRepo(db, log),
		ThreadMember:           repos.NewThreadMemberRepo(db, log),
		JobSubmission:          repos.NewJobSubmissionRepo(db, log),
	}
}
