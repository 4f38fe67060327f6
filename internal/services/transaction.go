package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/transactionsvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/repos"
	"github.com/tradepost/composite-backend/internal/requestdata"
	"github.com/tradepost/composite-backend/internal/types"
)

// TransactionCreateRequest is the composite's creation payload. Initiator and
// receiver are never supplied by the caller: the initiator is the
// authenticated user and the receiver is derived from the requested item's
// ownership row.
type TransactionCreateRequest struct {
	RequestedItemID uuid.UUID                      `json:"requested_item_id" binding:"required"`
	Type            transactionsvc.TransactionType `json:"type" binding:"required"`
	OfferedItemID   *uuid.UUID                     `json:"offered_item_id,omitempty"`
	OfferedPrice    *float64                       `json:"offered_price,omitempty"`
	Message         *string                        `json:"message,omitempty"`
}

type TransactionListFilter struct {
	ItemID *uuid.UUID
	Status *transactionsvc.TransactionStatus
	Skip   int
	Limit  int
}

type TransactionService interface {
	Create(ctx context.Context, body TransactionCreateRequest, idempotencyKey string) (*transactionsvc.TransactionRead, error)
	Get(ctx context.Context, transactionID uuid.UUID) (*transactionsvc.TransactionRead, error)
	ListMine(ctx context.Context, filter TransactionListFilter) ([]transactionsvc.TransactionRead, error)
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, target transactionsvc.TransactionStatus) (*transactionsvc.TransactionRead, error)
	Delete(ctx context.Context, transactionID uuid.UUID) error
}

type transactionService struct {
	db                *gorm.DB
	log               *logger.Logger
	transactionClient transactionsvc.Client
	itemOwners        repos.ItemOwnerRepo
	participants      repos.TransactionParticipantRepo
}

func NewTransactionService(
	db *gorm.DB,
	log *logger.Logger,
	transactionClient transactionsvc.Client,
	itemOwners repos.ItemOwnerRepo,
	participants repos.TransactionParticipantRepo,
) TransactionService {
	serviceLog := log.With("service", "TransactionService")
	return &transactionService{
		db:                db,
		log:               serviceLog,
		transactionClient: transactionClient,
		itemOwners:        itemOwners,
		participants:      participants,
	}
}

// Create derives the receiver from the requested item's ownership row, sends
// the creation to the ledger (forwarding the idempotency key untouched), then
// records the participant roles locally. The ledger deduplicates replays, so
// on a replayed key the existence check finds the earlier row and the insert
// is skipped; two replays racing past the check collapse on the unique index.
func (s *transactionService) Create(ctx context.Context, body TransactionCreateRequest, idempotencyKey string) (*transactionsvc.TransactionRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}

	receiverID, err := s.itemOwners.GetOwner(ctx, nil, body.RequestedItemID)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, apierr.NotFound(fmt.Errorf("item %s has no known owner", body.RequestedItemID))
		}
		return nil, err
	}
	if receiverID == userID {
		return nil, apierr.Validation(fmt.Errorf("cannot open a transaction on your own item"))
	}
	if body.Type == transactionsvc.TypeTrade && body.OfferedItemID == nil {
		return nil, apierr.Validation(fmt.Errorf("trade requires an offered item"))
	}
	if body.OfferedItemID != nil {
		owned, err := s.itemOwners.VerifyOwnership(ctx, nil, *body.OfferedItemID, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, apierr.Forbidden(fmt.Errorf("offered item %s is not owned by caller", *body.OfferedItemID))
		}
	}

	txn, err := s.transactionClient.Create(ctx, transactionsvc.TransactionCreate{
		RequestedItemID: body.RequestedItemID,
		InitiatorUserID: userID,
		ReceiverUserID:  receiverID,
		Type:            body.Type,
		OfferedItemID:   body.OfferedItemID,
		OfferedPrice:    body.OfferedPrice,
		Message:         body.Message,
	}, idempotencyKey)
	if err != nil {
		return nil, fromRemote(err)
	}

	if err := s.linkParticipants(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *transactionService) linkParticipants(ctx context.Context, txn *transactionsvc.TransactionRead) error {
	if _, err := s.participants.GetByTransactionID(ctx, nil, txn.TransactionID); err == nil {
		// Replayed idempotency key; the ledger returned the original
		// transaction and the roles are already recorded.
		return nil
	} else if !repos.IsNotFound(err) {
		return err
	}
	row := &types.TransactionParticipant{
		TransactionID:   txn.TransactionID,
		InitiatorUserID: txn.InitiatorUserID,
		ReceiverUserID:  txn.ReceiverUserID,
		RequestedItemID: txn.RequestedItemID,
		OfferedItemID:   txn.OfferedItemID,
	}
	if _, err := s.participants.Create(ctx, nil, row); err != nil {
		if repos.IsDuplicateKey(err) {
			return nil
		}
		s.log.Error("Transaction created remotely but roles not recorded", "transaction_id", txn.TransactionID, "error", err)
		return apierr.InternalInconsistency("transaction_link_failed",
			fmt.Errorf("transaction %s created remotely but participants not recorded: %w", txn.TransactionID, err))
	}
	return nil
}

// participantRow loads the local role row, translating "no row" into
// not-found so a non-participant cannot learn the transaction exists.
func (s *transactionService) participantRow(ctx context.Context, transactionID, userID uuid.UUID) (*types.TransactionParticipant, error) {
	row, err := s.participants.GetByTransactionID(ctx, nil, transactionID)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, apierr.NotFound(fmt.Errorf("transaction %s not found", transactionID))
		}
		return nil, err
	}
	if row.InitiatorUserID != userID && row.ReceiverUserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("transaction %s not found", transactionID))
	}
	return row, nil
}

func (s *transactionService) Get(ctx context.Context, transactionID uuid.UUID) (*transactionsvc.TransactionRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	if _, err := s.participantRow(ctx, transactionID, userID); err != nil {
		return nil, err
	}
	txn, err := s.transactionClient.Get(ctx, transactionID)
	if err != nil {
		return nil, fromRemote(err)
	}
	return txn, nil
}

// ListMine joins the local participant rows against the remote ledger and
// returns the intersection by transaction id. Ids present on one side only
// indicate drift between the stores; they are dropped from the response and
// logged so the divergence is visible without failing the read. Both sides
// are fetched unwindowed and the page is cut after the merge, so the two
// stores' orderings cannot shear a transaction out of its page.
func (s *transactionService) ListMine(ctx context.Context, filter TransactionListFilter) ([]transactionsvc.TransactionRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}

	var rows []*types.TransactionParticipant
	var remoteTxns []transactionsvc.TransactionRead

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.participants.ListForUser(gctx, nil, userID, filter.ItemID, 0, 0)
		return err
	})
	g.Go(func() error {
		txns, err := s.transactionClient.List(gctx, 0, 0)
		if err != nil {
			return fromRemote(err)
		}
		remoteTxns = txns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	local := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		local[row.TransactionID] = struct{}{}
	}
	byID := make(map[uuid.UUID]transactionsvc.TransactionRead, len(remoteTxns))
	for _, txn := range remoteTxns {
		byID[txn.TransactionID] = txn
	}

	out := make([]transactionsvc.TransactionRead, 0, len(rows))
	for _, row := range rows {
		txn, ok := byID[row.TransactionID]
		if !ok {
			s.log.Warn("Transaction known locally but absent from ledger", "transaction_id", row.TransactionID, "user_id", userID)
			continue
		}
		if filter.Status != nil && txn.Status != *filter.Status {
			continue
		}
		out = append(out, txn)
	}
	for _, txn := range remoteTxns {
		if _, ok := local[txn.TransactionID]; !ok &&
			(txn.InitiatorUserID == userID || txn.ReceiverUserID == userID) {
			s.log.Warn("Transaction in ledger but not linked locally", "transaction_id", txn.TransactionID, "user_id", userID)
		}
	}

	if filter.Skip > 0 {
		if filter.Skip >= len(out) {
			return []transactionsvc.TransactionRead{}, nil
		}
		out = out[filter.Skip:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus enforces the role matrix before touching the ledger: the
// initiator may cancel, the receiver may accept or reject, nothing else.
func (s *transactionService) UpdateStatus(ctx context.Context, transactionID uuid.UUID, target transactionsvc.TransactionStatus) (*transactionsvc.TransactionRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	row, err := s.participantRow(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}

	switch target {
	case transactionsvc.StatusCanceled:
		if row.InitiatorUserID != userID {
			return nil, apierr.Forbidden(fmt.Errorf("only the initiator may cancel transaction %s", transactionID))
		}
	case transactionsvc.StatusAccepted, transactionsvc.StatusRejected:
		if row.ReceiverUserID != userID {
			return nil, apierr.Forbidden(fmt.Errorf("only the receiver may resolve transaction %s", transactionID))
		}
	default:
		return nil, apierr.Validation(fmt.Errorf("status %q cannot be requested", target))
	}

	txn, err := s.transactionClient.Update(ctx, transactionID, transactionsvc.TransactionUpdate{Status: &target})
	if err != nil {
		return nil, fromRemote(err)
	}
	return txn, nil
}

func (s *transactionService) Delete(ctx context.Context, transactionID uuid.UUID) error {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	row, err := s.participantRow(ctx, transactionID, userID)
	if err != nil {
		return err
	}
	if row.InitiatorUserID != userID {
		return apierr.Forbidden(fmt.Errorf("only the initiator may delete transaction %s", transactionID))
	}
	if err := s.transactionClient.Delete(ctx, transactionID); err != nil {
		return fromRemote(err)
	}
	if err := s.participants.Delete(ctx, nil, transactionID); err != nil && !repos.IsNotFound(err) {
		return apierr.InternalInconsistency("transaction_unlink_failed",
			fmt.Errorf("transaction %s deleted remotely but participant row not removed: %w", transactionID, err))
	}
	return nil
}
