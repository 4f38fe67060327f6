package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/clients/rediscache"
	"github.com/tradepost/composite-backend/internal/clients/remote"
	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/repos"
	"github.com/tradepost/composite-backend/internal/requestdata"
)

const (
	categoriesCacheKey = "itemsvc:categories"
	categoriesCacheTTL = 5 * time.Minute
)

// CompleteItem is an item payload enriched with the resources it references
// across services: its pickup address and the owner's profile.
type CompleteItem struct {
	itemsvc.ItemRead
	Address *usersvc.AddressRead `json:"address,omitempty"`
	User    *usersvc.UserRead    `json:"user,omitempty"`
}

// ETagFor derives the opaque version token for optimistic concurrency from
// an item's last-update timestamp.
func ETagFor(updatedAt time.Time) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", updatedAt.UTC().UnixNano()))
}

type ItemService interface {
	ListPublic(ctx context.Context, skip, limit int) ([]CompleteItem, error)
	GetPublic(ctx context.Context, itemID uuid.UUID) (*CompleteItem, string, error)
	ListMine(ctx context.Context, skip, limit int) ([]CompleteItem, error)
	Update(ctx context.Context, itemID uuid.UUID, ifMatch string, body itemsvc.ItemUpdate) (*itemsvc.ItemRead, string, error)
	Delete(ctx context.Context, itemID uuid.UUID) error
	Categories(ctx context.Context) ([]string, error)
}

type itemService struct {
	db         *gorm.DB
	log        *logger.Logger
	itemClient itemsvc.Client
	userClient usersvc.Client
	itemOwners repos.ItemOwnerRepo
	cache      rediscache.Cache
}

func NewItemService(
	db *gorm.DB,
	log *logger.Logger,
	itemClient itemsvc.Client,
	userClient usersvc.Client,
	itemOwners repos.ItemOwnerRepo,
	cache rediscache.Cache,
) ItemService {
	serviceLog := log.With("service", "ItemService")
	return &itemService{
		db:         db,
		log:        serviceLog,
		itemClient: itemClient,
		userClient: userClient,
		itemOwners: itemOwners,
		cache:      cache,
	}
}

// completeItem splices the referenced address and the owner profile into the
// raw item. Both fetches run concurrently; they are independent and no
// ordering between them may be relied upon. A failure on either branch
// aborts the whole enrichment: a partially enriched item would leave the
// caller unable to tell which half is missing.
func (s *itemService) completeItem(ctx context.Context, item itemsvc.ItemRead, ownerID uuid.UUID) (*CompleteItem, error) {
	out := &CompleteItem{ItemRead: item}

	g, gctx := errgroup.WithContext(ctx)
	if item.AddressID != nil {
		addressID := *item.AddressID
		g.Go(func() error {
			address, err := s.userClient.GetAddress(gctx, addressID)
			if err != nil {
				return err
			}
			out.Address = address
			return nil
		})
	}
	if ownerID != uuid.Nil {
		g.Go(func() error {
			user, err := s.userClient.GetUser(gctx, ownerID)
			if err != nil {
				return err
			}
			out.User = user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if remote.IsUnavailable(err) {
			return nil, apierr.UpstreamUnavailable(err)
		}
		// Validation or a dangling reference: the relation points at
		// something the owning service rejects or no longer has.
		return nil, apierr.InternalInconsistency("enrichment_failed",
			fmt.Errorf("enriching item %s: %w", item.ItemID, err))
	}
	return out, nil
}

// completeItemTolerant is the batch variant: a failed lookup on a branch
// degrades to "no enrichment for this item" instead of failing the list.
func (s *itemService) completeItemTolerant(ctx context.Context, item itemsvc.ItemRead, ownerID uuid.UUID) *CompleteItem {
	out := &CompleteItem{ItemRead: item}

	var g errgroup.Group
	if item.AddressID != nil {
		addressID := *item.AddressID
		g.Go(func() error {
			address, err := s.userClient.GetAddress(ctx, addressID)
			if err != nil {
				s.log.Warn("Skipping address enrichment", "item_id", item.ItemID, "address_id", addressID, "error", err)
				return nil
			}
			out.Address = address
			return nil
		})
	}
	if ownerID != uuid.Nil {
		g.Go(func() error {
			user, err := s.userClient.GetUser(ctx, ownerID)
			if err != nil {
				s.log.Warn("Skipping owner enrichment", "item_id", item.ItemID, "owner_id", ownerID, "error", err)
				return nil
			}
			out.User = user
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// enrichBatch resolves enrichment for every item concurrently, fan-out not
// a sequential loop.
func (s *itemService) enrichBatch(ctx context.Context, items []itemsvc.ItemRead, owners map[uuid.UUID]uuid.UUID) []CompleteItem {
	out := make([]CompleteItem, len(items))
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			out[i] = *s.completeItemTolerant(ctx, item, owners[item.ItemID])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *itemService) ListPublic(ctx context.Context, skip, limit int) ([]CompleteItem, error) {
	items, err := s.itemClient.List(ctx, skip, limit)
	if err != nil {
		return nil, fromRemote(err)
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	// Items with no relation row are simply ownerless, not an error.
	owners, err := s.itemOwners.GetOwnersBatch(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	return s.enrichBatch(ctx, items, owners), nil
}

func (s *itemService) GetPublic(ctx context.Context, itemID uuid.UUID) (*CompleteItem, string, error) {
	item, err := s.itemClient.Get(ctx, itemID)
	if err != nil {
		return nil, "", fromRemote(err)
	}
	ownerID, err := s.itemOwners.GetOwner(ctx, nil, itemID)
	if err != nil && !repos.IsNotFound(err) {
		return nil, "", err
	}
	complete, err := s.completeItem(ctx, *item, ownerID)
	if err != nil {
		return nil, "", err
	}
	return complete, ETagFor(item.UpdatedAt), nil
}

func (s *itemService) ListMine(ctx context.Context, skip, limit int) ([]CompleteItem, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	ids, err := s.itemOwners.ListForUser(ctx, nil, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []CompleteItem{}, nil
	}
	// One batched remote call, not N point reads. A validation rejection
	// of the batch fails the whole list; no partial list goes out.
	items, err := s.itemClient.GetBatch(ctx, ids)
	if err != nil {
		return nil, fromRemote(err)
	}
	owners, err := s.itemOwners.GetOwnersBatch(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	return s.enrichBatch(ctx, items, owners), nil
}

func (s *itemService) Update(ctx context.Context, itemID uuid.UUID, ifMatch string, body itemsvc.ItemUpdate) (*itemsvc.ItemRead, string, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, "", apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	// Precondition gate runs before any remote call.
	if ifMatch == "" {
		return nil, "", apierr.PreconditionFailed(fmt.Errorf("missing If-Match header"))
	}
	owned, err := s.itemOwners.VerifyOwnership(ctx, nil, itemID, userID)
	if err != nil {
		return nil, "", err
	}
	if !owned {
		return nil, "", apierr.Forbidden(fmt.Errorf("item %s is not owned by caller", itemID))
	}
	current, err := s.itemClient.Get(ctx, itemID)
	if err != nil {
		return nil, "", fromRemote(err)
	}
	if ETagFor(current.UpdatedAt) != ifMatch {
		return nil, "", apierr.PreconditionFailed(fmt.Errorf("item %s changed since the supplied ETag", itemID))
	}
	updated, err := s.itemClient.Update(ctx, itemID, body)
	if err != nil {
		return nil, "", fromRemote(err)
	}
	return updated, ETagFor(updated.UpdatedAt), nil
}

func (s *itemService) Delete(ctx context.Context, itemID uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	owned, err := s.itemOwners.VerifyOwnership(ctx, nil, itemID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return apierr.Forbidden(fmt.Errorf("item %s is not owned by caller", itemID))
	}
	if err := s.itemClient.Delete(ctx, itemID); err != nil {
		return fromRemote(err)
	}
	if err := s.itemOwners.Delete(ctx, nil, itemID); err != nil && !repos.IsNotFound(err) {
		// Remote item is gone but the relation row survived.
		return apierr.InternalInconsistency("item_unlink_failed",
			fmt.Errorf("item %s deleted remotely but ownership row not removed: %w", itemID, err))
	}
	return nil
}

func (s *itemService) Categories(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var cached []string
		hit, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached)
		if err != nil {
			s.log.Warn("Category cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}
	categories, err := s.itemClient.Categories(ctx)
	if err != nil {
		return nil, fromRemote(err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, categoriesCacheKey, categories, categoriesCacheTTL); err != nil {
			s.log.Warn("Category cache write failed", "error", err)
		}
	}
	return categories, nil
}
