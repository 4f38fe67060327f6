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
	"github.com/tradepost/composite-backend/internal/requestdata"
)

// Profile is the caller's remote user record joined with the addresses the
// composite knows they own.
type Profile struct {
	usersvc.UserRead
	Addresses []usersvc.AddressRead `json:"addresses"`
}

type UserService interface {
	GetMe(ctx context.Context) (*Profile, error)
}

type userService struct {
	db             *gorm.DB
	log            *logger.Logger
	userClient     usersvc.Client
	addressService AddressService
}

func NewUserService(
	db *gorm.DB,
	log *logger.Logger,
	userClient usersvc.Client,
	addressService AddressService,
) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:             db,
		log:            serviceLog,
		userClient:     userClient,
		addressService: addressService,
	}
}

// GetMe fetches the profile and the owned-address list concurrently. The
// profile fetch is authoritative; address lookups are tolerant (handled
// inside AddressService.ListMine).
func (s *userService) GetMe(ctx context.Context) (*Profile, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}

	var user *usersvc.UserRead
	var addresses []usersvc.AddressRead

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.userClient.GetUser(gctx, userID)
		if err != nil {
			return fromRemote(err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		addrs, err := s.addressService.ListMine(gctx)
		if err != nil {
			return err
		}
		addresses = addrs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if addresses == nil {
		addresses = []usersvc.AddressRead{}
	}
	return &Profile{UserRead: *user, Addresses: addresses}, nil
}
