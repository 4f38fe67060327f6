package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/clients/messagingsvc"
	"github.com/tradepost/composite-backend/internal/clients/rediscache"
	"github.com/tradepost/composite-backend/internal/clients/transactionsvc"
	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/logger"
)

type Clients struct {
	Item        itemsvc.Client
	User        usersvc.Client
	Transaction transactionsvc.Client
	Messaging   messagingsvc.Client
	Cache       rediscache.Cache
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	itemClient, err := itemsvc.New(log, itemsvc.Config{BaseURL: cfg.ItemServiceURL, Timeout: cfg.ItemServiceTimeout})
	if err != nil {
		return Clients{}, fmt.Errorf("init item client: %w", err)
	}
	userClient, err := usersvc.New(log, usersvc.Config{BaseURL: cfg.UserServiceURL, Timeout: cfg.UserServiceTimeout})
	if err != nil {
		return Clients{}, fmt.Errorf("init user client: %w", err)
	}
	txnClient, err := transactionsvc.New(log, transactionsvc.Config{BaseURL: cfg.TransactionServiceURL, Timeout: cfg.TransactionServiceTimeout})
	if err != nil {
		return Clients{}, fmt.Errorf("init transaction client: %w", err)
	}
	msgClient, err := messagingsvc.New(log, messagingsvc.Config{BaseURL: cfg.MessagingServiceURL, Timeout: cfg.MessagingServiceTimeout})
	if err != nil {
		return Clients{}, fmt.Errorf("init messaging client: %w", err)
	}

	// Redis is optional; without it category reads always hit the item
	// service.
	var cache rediscache.Cache
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := rediscache.NewFromEnv(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis cache: %w", err)
		}
		cache = c
	}

	return Clients{
		Item:        itemClient,
		User:        userClient,
		Transaction: txnClient,
		Messaging:   msgClient,
		Cache:       cache,
	}, nil
}
