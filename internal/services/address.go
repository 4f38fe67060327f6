package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/repos"
	"github.com/tradepost/composite-backend/internal/requestdata"
)

type AddressService interface {
	Create(ctx context.Context, body usersvc.AddressCreate) (*usersvc.AddressRead, error)
	ListMine(ctx context.Context) ([]usersvc.AddressRead, error)
	Update(ctx context.Context, addressID uuid.UUID, body usersvc.AddressUpdate) (*usersvc.AddressRead, error)
	Delete(ctx context.Context, addressID uuid.UUID) error
}

type addressService struct {
	db            *gorm.DB
	log           *logger.Logger
	userClient    usersvc.Client
	addressOwners repos.AddressOwnerRepo
}

func NewAddressService(
	db *gorm.DB,
	log *logger.Logger,
	userClient usersvc.Client,
	addressOwners repos.AddressOwnerRepo,
) AddressService {
	serviceLog := log.With("service", "AddressService")
	return &addressService{
		db:            db,
		log:           serviceLog,
		userClient:    userClient,
		addressOwners: addressOwners,
	}
}

// Create is a two-step saga: remote create, then local ownership link. There
// is no cross-service transaction, so a failed link after a successful
// create leaves an orphaned remote address. That state is surfaced with its
// own error code rather than masked as a creation failure, so the caller
// knows the address may exist remotely and can retry or report it.
func (s *addressService) Create(ctx context.Context, body usersvc.AddressCreate) (*usersvc.AddressRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	address, err := s.userClient.CreateAddress(ctx, body)
	if err != nil {
		return nil, fromRemote(err)
	}
	if _, err := s.addressOwners.Create(ctx, nil, address.ID, userID); err != nil {
		if repos.IsDuplicateKey(err) {
			// Caller retry after a partial failure; the link exists.
			return address, nil
		}
		s.log.Error("Address created remotely but link failed", "address_id", address.ID, "user_id", userID, "error", err)
		return nil, apierr.InternalInconsistency("address_link_failed",
			fmt.Errorf("address %s created remotely but not linked to owner: %w", address.ID, err))
	}
	return address, nil
}

// ListMine fans out the per-address fetches; an individual lookup failure
// drops that address from the list rather than failing the whole read.
func (s *addressService) ListMine(ctx context.Context) ([]usersvc.AddressRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	ids, err := s.addressOwners.ListForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	slots := make([]*usersvc.AddressRead, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			address, err := s.userClient.GetAddress(ctx, id)
			if err != nil {
				s.log.Warn("Skipping address in listing", "address_id", id, "error", err)
				return nil
			}
			slots[i] = address
			return nil
		})
	}
	_ = g.Wait()
	out := make([]usersvc.AddressRead, 0, len(ids))
	for _, address := range slots {
		if address != nil {
			out = append(out, *address)
		}
	}
	return out, nil
}

func (s *addressService) Update(ctx context.Context, addressID uuid.UUID, body usersvc.AddressUpdate) (*usersvc.AddressRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	owned, err := s.addressOwners.VerifyOwnership(ctx, nil, addressID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, apierr.Forbidden(fmt.Errorf("address %s is not owned by caller", addressID))
	}
	address, err := s.userClient.UpdateAddress(ctx, addressID, body)
	if err != nil {
		return nil, fromRemote(err)
	}
	return address, nil
}

func (s *addressService) Delete(ctx context.Context, addressID uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	owned, err := s.addressOwners.VerifyOwnership(ctx, nil, addressID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return apierr.Forbidden(fmt.Errorf("address %s is not owned by caller", addressID))
	}
	if err := s.userClient.DeleteAddress(ctx, addressID); err != nil {
		return fromRemote(err)
	}
	if err := s.addressOwners.Delete(ctx, nil, addressID); err != nil && !repos.IsNotFound(err) {
		return apierr.InternalInconsistency("address_unlink_failed",
			fmt.Errorf("address %s deleted remotely but ownership row not removed: %w", addressID, err))
	}
	return nil
}
