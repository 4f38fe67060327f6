package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Item        services.ItemService
	Job         services.JobService
	Address     services.AddressService
	User        services.UserService
	Transaction services.TransactionService
	Messaging   services.MessagingService
	Bucket      services.BucketService
	Image       services.ImageService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	bucketService, err := services.NewBucketService(log)
	if err != nil {
		return Services{}, fmt.Errorf("init bucket service: %w", err)
	}

	addressService := services.NewAddressService(db, log, clients.User, reposet.AddressOwner)

	return Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey),
		Item:        services.NewItemService(db, log, clients.Item, clients.User, reposet.ItemOwner, clients.Cache),
		Job:         services.NewJobService(db, log, clients.Item, reposet.ItemOwner, reposet.JobSubmission),
		Address:     addressService,
		User:        services.NewUserService(db, log, clients.User, addressService),
		Transaction: services.NewTransactionService(db, log, clients.Transaction, reposet.ItemOwner, reposet.TransactionParticipant),
		Messaging:   services.NewMessagingService(db, log, clients.Messaging, reposet.ThreadMember),
		Bucket:      bucketService,
		Image:       services.NewImageService(log, bucketService, cfg.ImageWorkers),
	}, nil
}
