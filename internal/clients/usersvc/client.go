package usersvc

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradepost/composite-backend/internal/clients/remote"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/utils"
)

type UserRead struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AddressRead struct {
	ID         uuid.UUID `json:"id"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      *string   `json:"state,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AddressCreate carries no owner field: the user/address service has no
// concept of which composite user owns an address.
type AddressCreate struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    string  `json:"country"`
}

type AddressUpdate struct {
	Street     *string `json:"street,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
}

type Client interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*UserRead, error)
	GetAddress(ctx context.Context, addressID uuid.UUID) (*AddressRead, error)
	CreateAddress(ctx context.Context, body AddressCreate) (*AddressRead, error)
	UpdateAddress(ctx context.Context, addressID uuid.UUID, body AddressUpdate) (*AddressRead, error)
	DeleteAddress(ctx context.Context, addressID uuid.UUID) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	timeoutSec := utils.GetEnvAsInt("USER_SERVICE_TIMEOUT_SECONDS", 10, nil)
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("USER_SERVICE_URL")),
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
		return nil, fmt.Errorf("missing USER_SERVICE_URL")
	}
	clientLog := log.With("client", "UserClient")
	return &client{
		log:    clientLog,
		caller: remote.NewCaller(clientLog, cfg.BaseURL, cfg.Timeout),
	}, nil
}

type client struct {
	log    *logger.Logger
	caller *remote.Caller
}

func (c *client) GetUser(ctx context.Context, userID uuid.UUID) (*UserRead, error) {
	var user UserRead
	if err := c.caller.Do(ctx, http.MethodGet, "/users/"+userID.String(), nil, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *client) GetAddress(ctx context.Context, addressID uuid.UUID) (*AddressRead, error) {
	var address AddressRead
	if err := c.caller.Do(ctx, http.MethodGet, "/addresses/"+addressID.String(), nil, nil, nil, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

func (c *client) CreateAddress(ctx context.Context, body AddressCreate) (*AddressRead, error) {
	var address AddressRead
	if err := c.caller.Do(ctx, http.MethodPost, "/addresses", nil, nil, body, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

func (c *client) UpdateAddress(ctx context.Context, addressID uuid.UUID, body AddressUpdate) (*AddressRead, error) {
	var address AddressRead
	if err := c.caller.Do(ctx, http.MethodPut, "/addresses/"+addressID.String(), nil, nil, body, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

func (c *client) DeleteAddress(ctx context.Context, addressID uuid.UUID) error {
	return c.caller.Do(ctx, http.MethodDelete, "/addresses/"+addressID.String(), nil, nil, nil, nil)
}
