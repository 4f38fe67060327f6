package messagingsvc

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

type ThreadRead struct {
	ThreadID      uuid.UUID `json:"thread_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type ThreadCreate struct {
	AuthorID      uuid.UUID `json:"author_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
}

type MessageRead struct {
	MessageID uuid.UUID `json:"message_id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageCreate struct {
	SenderID uuid.UUID `json:"sender_id"`
	Content  string    `json:"content"`
}

type Client interface {
	CreateThread(ctx context.Context, body ThreadCreate) (*ThreadRead, error)
	GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadRead, error)
	SendMessage(ctx context.Context, threadID uuid.UUID, body MessageCreate) (*MessageRead, error)
	GetMessages(ctx context.Context, threadID uuid.UUID) ([]MessageRead, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	timeoutSec := utils.GetEnvAsInt("MESSAGING_SERVICE_TIMEOUT_SECONDS", 10, nil)
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("MESSAGING_SERVICE_URL")),
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
		return nil, fmt.Errorf("missing MESSAGING_SERVICE_URL")
	}
	clientLog := log.With("client", "MessagingClient")
	return &client{
		log:    clientLog,
		caller: remote.NewCaller(clientLog, cfg.BaseURL, cfg.Timeout),
	}, nil
}

type client struct {
	log    *logger.Logger
	caller *remote.Caller
}

func (c *client) CreateThread(ctx context.Context, body ThreadCreate) (*ThreadRead, error) {
	var thread ThreadRead
	if err := c.caller.Do(ctx, http.MethodPost, "/threads", nil, nil, body, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *client) GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadRead, error) {
	var thread ThreadRead
	if err := c.caller.Do(ctx, http.MethodGet, "/threads/"+threadID.String(), nil, nil, nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *client) SendMessage(ctx context.Context, threadID uuid.UUID, body MessageCreate) (*MessageRead, error) {
	var msg MessageRead
	if err := c.caller.Do(ctx, http.MethodPost, "/threads/"+threadID.String()+"/messages", nil, nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *client) GetMessages(ctx context.Context, threadID uuid.UUID) ([]MessageRead, error) {
	var msgs []MessageRead
	if err := c.caller.Do(ctx, http.MethodGet, "/threads/"+threadID.String()+"/messages", nil, nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
