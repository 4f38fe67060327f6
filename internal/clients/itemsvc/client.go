package itemsvc

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

type Condition string

const (
	ConditionBrandNew Condition = "BRAND_NEW"
	ConditionLikeNew  Condition = "LIKE_NEW"
	ConditionGood     Condition = "GOOD"
	ConditionPoor     Condition = "POOR"
)

type TransactionType string

const (
	TransactionSale TransactionType = "SALE"
	TransactionRent TransactionType = "RENT"
)

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the job can no longer change state. The remote
// item service alone transitions jobs; the composite only observes.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type ItemRead struct {
	ItemID          uuid.UUID       `json:"item_UUID"`
	Title           string          `json:"title"`
	Condition       Condition       `json:"condition"`
	TransactionType TransactionType `json:"transaction_type"`
	Price           float64         `json:"price"`
	Description     *string         `json:"description,omitempty"`
	Category        []string        `json:"category,omitempty"`
	AddressID       *uuid.UUID      `json:"address_UUID,omitempty"`
	ImageURLs       []string        `json:"image_urls,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ItemCreate struct {
	Title           string          `json:"title"`
	Condition       Condition       `json:"condition"`
	TransactionType TransactionType `json:"transaction_type"`
	Price           float64         `json:"price"`
	Description     *string         `json:"description,omitempty"`
	Category        []string        `json:"category,omitempty"`
	AddressID       *uuid.UUID      `json:"address_UUID,omitempty"`
	ImageURLs       []string        `json:"image_urls,omitempty"`
}

type ItemUpdate struct {
	Title           *string          `json:"title,omitempty"`
	Condition       *Condition       `json:"condition,omitempty"`
	TransactionType *TransactionType `json:"transaction_type,omitempty"`
	Price           *float64         `json:"price,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Category        []string         `json:"category,omitempty"`
	AddressID       *uuid.UUID       `json:"address_UUID,omitempty"`
	ImageURLs       []string         `json:"image_urls,omitempty"`
}

type JobRead struct {
	JobID        uuid.UUID  `json:"job_UUID"`
	Status       JobStatus  `json:"status"`
	ItemID       *uuid.UUID `json:"item_UUID,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

type Client interface {
	List(ctx context.Context, skip, limit int) ([]ItemRead, error)
	Get(ctx context.Context, itemID uuid.UUID) (*ItemRead, error)
	GetBatch(ctx context.Context, itemIDs []uuid.UUID) ([]ItemRead, error)
	Create(ctx context.Context, body ItemCreate) (*JobRead, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*JobRead, error)
	Update(ctx context.Context, itemID uuid.UUID, body ItemUpdate) (*ItemRead, error)
	Delete(ctx context.Context, itemID uuid.UUID) error
	Categories(ctx context.Context) ([]string, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	timeoutSec := utils.GetEnvAsInt("ITEM_SERVICE_TIMEOUT_SECONDS", 10, nil)
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("ITEM_SERVICE_URL")),
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
		return nil, fmt.Errorf("missing ITEM_SERVICE_URL")
	}
	clientLog := log.With("client", "ItemClient")
	return &client{
		log:    clientLog,
		caller: remote.NewCaller(clientLog, cfg.BaseURL, cfg.Timeout),
	}, nil
}

type client struct {
	log    *logger.Logger
	caller *remote.Caller
}

func (c *client) List(ctx context.Context, skip, limit int) ([]ItemRead, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	var items []ItemRead
	if err := c.caller.Do(ctx, http.MethodGet, "/items", q, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *client) Get(ctx context.Context, itemID uuid.UUID) (*ItemRead, error) {
	var item ItemRead
	if err := c.caller.Do(ctx, http.MethodGet, "/items/"+itemID.String(), nil, nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetBatch fetches many items in one remote call rather than N point reads.
func (c *client) GetBatch(ctx context.Context, itemIDs []uuid.UUID) ([]ItemRead, error) {
	if len(itemIDs) == 0 {
		return []ItemRead{}, nil
	}
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, id.String())
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	var items []ItemRead
	if err := c.caller.Do(ctx, http.MethodGet, "/items", q, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create submits an item for asynchronous creation. The item service runs it
// as a background job and returns the handle to poll.
func (c *client) Create(ctx context.Context, body ItemCreate) (*JobRead, error) {
	var job JobRead
	if err := c.caller.Do(ctx, http.MethodPost, "/items", nil, nil, body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *client) GetJob(ctx context.Context, jobID uuid.UUID) (*JobRead, error) {
	var job JobRead
	if err := c.caller.Do(ctx, http.MethodGet, "/items/jobs/"+jobID.String(), nil, nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *client) Update(ctx context.Context, itemID uuid.UUID, body ItemUpdate) (*ItemRead, error) {
	var item ItemRead
	if err := c.caller.Do(ctx, http.MethodPatch, "/items/"+itemID.String(), nil, nil, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *client) Delete(ctx context.Context, itemID uuid.UUID) error {
	return c.caller.Do(ctx, http.MethodDelete, "/items/"+itemID.String(), nil, nil, nil, nil)
}

func (c *client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.caller.Do(ctx, http.MethodGet, "/items/categories", nil, nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
