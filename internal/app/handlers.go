package app

import (
	"github.com/gin-gonic/gin"

	"github.com/tradepost/composite-backend/internal/handlers"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/middleware"
	"github.com/tradepost/composite-backend/internal/server"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

type Handlers struct {
	Item        *handlers.ItemHandler
	Address     *handlers.AddressHandler
	User        *handlers.UserHandler
	Transaction *handlers.TransactionHandler
	Messaging   *handlers.MessagingHandler
	Image       *handlers.ImageHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Item:        handlers.NewItemHandler(serviceset.Item, serviceset.Job),
		Address:     handlers.NewAddressHandler(serviceset.Address),
		User:        handlers.NewUserHandler(serviceset.User),
		Transaction: handlers.NewTransactionHandler(serviceset.Transaction),
		Messaging:   handlers.NewMessagingHandler(serviceset.Messaging),
		Image:       handlers.NewImageHandler(serviceset.Image),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, serviceset.Auth),
	}
}

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:     mw.Auth,
		ItemHandler:        handlerset.Item,
		AddressHandler:     handlerset.Address,
		UserHandler:        handlerset.User,
		TransactionHandler: handlerset.Transaction,
		MessagingHandler:   handlerset.Messaging,
		ImageHandler:       handlerset.Image,
		AllowedOrigins:     cfg.AllowedOrigins,
	})
}
