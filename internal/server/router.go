package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tradepost/composite-backend/internal/handlers"
	"github.com/tradepost/composite-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware     *middleware.AuthMiddleware
	ItemHandler        *handlers.ItemHandler
	AddressHandler     *handlers.AddressHandler
	UserHandler        *handlers.UserHandler
	TransactionHandler *handlers.TransactionHandler
	MessagingHandler   *handlers.MessagingHandler
	ImageHandler       *handlers.ImageHandler
	AllowedOrigins     []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "If-Match", "X-Idempotency-Key", "X-Requested-With"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/items", cfg.ItemHandler.List)
	router.GET("/items/categories", cfg.ItemHandler.Categories)
	router.GET("/items/:id", cfg.ItemHandler.Get)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Items
	protected.POST("/me/items", cfg.ItemHandler.Submit)
	protected.GET("/me/items", cfg.ItemHandler.ListMine)
	protected.GET("/me/items/jobs/:job_id", cfg.ItemHandler.PollJob)
	protected.PATCH("/me/items/:id", cfg.ItemHandler.Update)
	protected.DELETE("/me/items/:id", cfg.ItemHandler.Delete)
	// Addresses
	protected.POST("/me/addresses", cfg.AddressHandler.Create)
	protected.GET("/me/addresses", cfg.AddressHandler.ListMine)
	protected.PUT("/addresses/:id", cfg.AddressHandler.Update)
	protected.DELETE("/addresses/:id", cfg.AddressHandler.Delete)
	// User
	protected.GET("/me/user", cfg.UserHandler.GetMe)
	// Transactions
	protected.POST("/transactions/transaction", cfg.TransactionHandler.Create)
	protected.GET("/transactions", cfg.TransactionHandler.ListMine)
	protected.GET("/transactions/:id", cfg.TransactionHandler.Get)
	protected.PUT("/transactions/:id", cfg.TransactionHandler.UpdateStatus)
	protected.DELETE("/transactions/:id", cfg.TransactionHandler.Delete)
	// Messaging
	protected.POST("/messaging/threads", cfg.MessagingHandler.CreateThread)
	protected.GET("/messaging/threads", cfg.MessagingHandler.ListThreads)
	protected.GET("/messaging/threads/:id", cfg.MessagingHandler.GetThread)
	protected.GET("/messaging/threads/:id/messages", cfg.MessagingHandler.GetMessages)
	protected.POST("/messaging/messages/:thread_id", cfg.MessagingHandler.SendMessage)
	// Images
	protected.POST("/images", cfg.ImageHandler.Upload)
	protected.GET("/images/*key", cfg.ImageHandler.Resolve)

	return router
}
