package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"festival/internal/auth"
	"festival/internal/cache"
	"festival/internal/config"
	"festival/internal/database"
	"festival/internal/external"
	"festival/internal/handlers"
	"festival/internal/logger"
	"festival/internal/messaging"
	"festival/internal/metrics"
	"festival/internal/middleware"
	"festival/internal/repository"
	"festival/internal/search"
	"festival/internal/service"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	search   *search.ElasticsearchClient
	services *service.Services
	tokens   *auth.TokenIssuer
}

// NewServer подключает зависимости и настраивает роуты.
// Postgres обязателен; NATS, Valkey и Elasticsearch при недоступности отключаются.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.ValidateAPI(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Get().Warn("NATS unavailable, settlement events will not be published", "error", err)
		natsClient = nil
	}

	var valkeyClient *cache.ValkeyClient
	if cfg.Cache.Enabled {
		valkeyClient, err = cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			logger.Get().Warn("Valkey unavailable, public lists will not be cached", "error", err)
			valkeyClient = nil
		}
	}

	var esClient *search.ElasticsearchClient
	if cfg.Elasticsearch.Enabled {
		esClient, err = search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, lineup search uses the database", "error", err)
			esClient = nil
		}
	}

	paymentClient := external.NewPaymentClient(cfg.Payment)
	notifier := external.NewNotifier(cfg.Notifier)
	tokens := auth.NewTokenIssuer(cfg.Auth)

	repos := repository.NewRepositories(db)
	services := service.NewServices(cfg, repos, natsClient, valkeyClient, esClient, paymentClient, notifier, tokens)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		search:   esClient,
		services: services,
		tokens:   tokens,
	}

	server.setupRoutes()

	return server, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	requireAuth := middleware.Auth(s.tokens)

	api := s.router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		api.GET("/ticket-types", h.ListTicketTypes)
		api.GET("/projects", h.ListProjects)

		auctions := api.Group("/auctions")
		{
			auctions.GET("", h.ListAuctions)
			auctions.GET("/:id", h.GetAuction)
			auctions.GET("/:id/bids", h.ListAuctionBids)
		}

		lineup := api.Group("/lineup")
		{
			lineup.GET("", h.Lineup)
			lineup.GET("/:slug", h.GetArtist)
		}
		api.GET("/schedule", h.Schedule)

		// Webhook без авторизации, подлинность проверяется подписью
		api.POST("/webhooks/payments", h.PaymentWebhook)

		checkout := api.Group("/checkout")
		{
			checkout.GET("/:sessionId", h.CheckoutStatus)
			checkout.POST("/tickets", requireAuth, h.CheckoutTickets)
			checkout.POST("/bids", requireAuth, h.CheckoutBid)
			checkout.POST("/donations", middleware.OptionalAuth(s.tokens), h.CheckoutDonation)
		}

		me := api.Group("/me", requireAuth)
		{
			me.GET("", h.Me)
			me.PATCH("", h.UpdateMe)
			me.GET("/tickets", h.MyTickets)
			me.GET("/bids", h.MyBids)
		}

		admin := api.Group("/admin", requireAuth, middleware.RequireAdmin(s.services.Auth))
		{
			admin.GET("/dashboard", h.Dashboard)
			admin.POST("/auctions", h.CreateAuction)
			admin.PATCH("/auctions/:id/status", h.UpdateAuctionStatus)
			admin.POST("/ticket-types", h.CreateTicketType)
			admin.PATCH("/ticket-types/:id/restock", h.RestockTicketType)
			admin.POST("/projects", h.CreateProject)
			admin.PATCH("/projects/:id", h.UpdateProject)
			admin.DELETE("/projects/:id", h.DeleteProject)
			admin.GET("/donations", h.ListDonations)
			admin.GET("/tickets", h.ListTickets)
			admin.GET("/users", h.ListUsers)
			admin.PUT("/users/:id/roles/admin", h.GrantAdmin)
			admin.DELETE("/users/:id/roles/admin", h.RevokeAdmin)
			admin.POST("/artists", h.CreateArtist)
			admin.POST("/performances", h.CreatePerformance)
			admin.PATCH("/tickets/:id/used", h.MarkTicketUsed)
			admin.GET("/issues", h.ListIssues)
			admin.PATCH("/issues/:id/resolve", h.ResolveIssue)
			admin.POST("/notifications", h.Broadcast)
			admin.POST("/notifications/scheduled", h.ScheduleNotification)
			admin.GET("/notifications/scheduled", h.ListScheduledNotifications)
			admin.DELETE("/notifications/scheduled/:id", h.CancelScheduledNotification)
		}
	}

	s.router.GET("/health", s.healthCheck)
	if s.config.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	db := s.db.HealthCheck(ctx)
	status := http.StatusOK
	if db.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	// поиск необязателен: при ошибке лайнап читается из базы, статус не меняется
	searchStatus := "disabled"
	if s.search != nil {
		searchStatus = "healthy"
		if err := s.search.HealthCheck(ctx); err != nil {
			searchStatus = "unhealthy"
			logger.WithContext(ctx).Warn("Elasticsearch health check failed", "error", err)
		}
	}

	c.JSON(status, gin.H{
		"status":   db.Status,
		"service":  "festival-api",
		"database": db,
		"nats":     s.nats != nil,
		"cache":    s.valkey != nil,
		"search":   searchStatus,
	})
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
