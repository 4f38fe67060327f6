package transactionsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradepost/composite-backend/internal/clients/remote"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/utils"
)

type TransactionType string

const (
	TypePurchase TransactionType = "purchase"
	TypeTrade    TransactionType = "trade"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusAccepted TransactionStatus = "accepted"
	StatusRejected TransactionStatus = "rejected"
	StatusCanceled TransactionStatus = "canceled"
)

type TransactionRead struct {
	TransactionID   uuid.UUID         `json:"transaction_id"`
	RequestedItemID uuid.UUID         `json:"requested_item_id"`
	InitiatorUserID uuid.UUID         `json:"initiator_user_id"`
	ReceiverUserID  uuid.UUID         `json:"receiver_user_id"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	OfferedItemID   *uuid.UUID        `json:"offered_item_id,omitempty"`
	OfferedPrice    *float64          `json:"offered_price,omitempty"`
	Message         *string           `json:"message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type TransactionCreate struct {
	RequestedItemID uuid.UUID       `json:"requested_item_id"`
	InitiatorUserID uuid.UUID       `json:"initiator_user_id"`
	ReceiverUserID  uuid.UUID       `json:"receiver_user_id"`
	Type            TransactionType `json:"type"`
	OfferedItemID   *uuid.UUID      `json:"offered_item_id,omitempty"`
	OfferedPrice    *float64        `json:"offered_price,omitempty"`
	Message         *string         `json:"message,omitempty"`
}

type TransactionUpdate struct {
	Status  *TransactionStatus `json:"status,omitempty"`
	Message *string            `json:"message,omitempty"`
}

const idempotencyKeyHeader = "X-Idempotency-Key"

type Client interface {
	List(ctx context.Context, skip, limit int) ([]TransactionRead, error)
	Get(ctx context.Context, transactionID uuid.UUID) (*TransactionRead, error)
	// Create forwards idempotencyKey verbatim when non-empty; the ledger
	// deduplicates repeated submissions, not the composite.
	Create(ctx context.Context, body TransactionCreate, idempotencyKey string) (*TransactionRead, error)
	Update(ctx context.Context, transactionID uuid.UUID, body TransactionUpdate) (*TransactionRead, error)
	Delete(ctx context.Context, transactionID uuid.UUID) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	timeoutSec := utils.GetEnvAsInt("TRANSACTION_SERVICE_TIMEOUT_SECONDS", 10, nil)
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("TRANSACTION_SERVICE_URL")),
		Timeout: time.Duration(timeoutSec) * time.Second,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing TRANSACTION_SERVICE_URL")
	}
	clientLog := log.With("client", "TransactionClient")
	return &client{
		log:    clientLog,
		caller: remote.NewCaller(clientLog, cfg.BaseURL, cfg.Timeout),
	}, nil
}

type client struct {
	log    *logger.Logger
	caller *remote.Caller
}

// List fetches the ledger listing. Zero skip/limit means an unwindowed
// fetch; the composite paginates after merging with its own rows.
func (c *client) List(ctx context.Context, skip, limit int) ([]TransactionRead, error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var txns []TransactionRead
	if err := c.caller.Do(ctx, http.MethodGet, "/transactions", q, nil, nil, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func (c *client) Get(ctx context.Context, transactionID uuid.UUID) (*TransactionRead, error) {
	var txn TransactionRead
	if err := c.caller.Do(ctx, http.MethodGet, "/transactions/"+transactionID.String(), nil, nil, nil, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *client) Create(ctx context.Context, body TransactionCreate, idempotencyKey string) (*TransactionRead, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{}
		headers.Set(idempotencyKeyHeader, idempotencyKey)
	}
	var txn TransactionRead
	if err := c.caller.Do(ctx, http.MethodPost, "/transactions/transaction", nil, headers, body, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *client) Update(ctx context.Context, transactionID uuid.UUID, body TransactionUpdate) (*TransactionRead, error) {
	var txn TransactionRead
	if err := c.caller.Do(ctx, http.MethodPut, "/transactions/"+transactionID.String(), nil, nil, body, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *client) Delete(ctx context.Context, transactionID uuid.UUID) error {
	return c.caller.Do(ctx, http.MethodDelete, "/transactions/"+transactionID.String(), nil, nil, nil, nil)
}
