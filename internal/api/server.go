package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoconnect/internal/cache"
	"geoconnect/internal/config"
	"geoconnect/internal/database"
	"geoconnect/internal/external"
	"geoconnect/internal/handlers"
	"geoconnect/internal/logger"
	"geoconnect/internal/messaging"
	"geoconnect/internal/middleware"
	"geoconnect/internal/repository"
	"geoconnect/internal/service"
	"geoconnect/internal/service/ports"
)

// Server wires the booking core behind its HTTP surface.
type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         *database.DB
	nats       *messaging.NATSClient
	rulesCache *cache.RulesCache
	services   *service.Services
	httpServer *http.Server
}

// NewServer connects the infrastructure and builds the router. Redis is
// optional: with no REDIS_ADDR configured, pricing rules are read from
// Postgres on every reservation.
func NewServer(cfg *config.Config) (*Server, error) {
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
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var rulesCache *cache.RulesCache
	if cfg.Redis.Addr != "" {
		rulesCache, err = cache.NewRulesCache(cfg.Redis)
		if err != nil {
			logger.Get().Warn("pricing rules cache unavailable, reading rules from database", "error", err)
			rulesCache = nil
		}
	}

	store := repository.NewStore(db)
	paymentClient := external.NewPaymentClient(cfg.Payment)

	services := service.NewServices(store, ncOrNil(rulesCache), natsClient, paymentClient, service.Options{
		ReservationTTL:      cfg.Booking.ReservationTTL,
		IdempotencyTTL:      cfg.Booking.IdempotencyTTL,
		SeatUniquenessCheck: cfg.Booking.SeatUniquenessCheck,
		CallbackBaseURL:     cfg.PublicBaseURL,
	})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	server := &Server{
		router:     router,
		config:     cfg,
		db:         db,
		nats:       natsClient,
		rulesCache: rulesCache,
		services:   services,
	}
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services.Bookings, s.services.Webhooks, s.services.Tickets)

	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.Tenant())
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("/:booking_id", h.GetBooking)
			bookings.POST("/:booking_id/cancel", h.CancelBooking)
		}

		tickets := v1.Group("/tickets")
		tickets.Use(middleware.Tenant())
		{
			tickets.GET("/:ticket_id/pdf", h.TicketPDF)
		}

		// Webhooks come from payment providers, not tenants.
		v1.POST("/payments/webhooks/:provider", h.PaymentWebhook)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the HTTP server until the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Get().Info("starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes infrastructure connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.rulesCache != nil {
		if err := s.rulesCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.nats.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Services exposes the wired service layer to the sweeper binary.
func (s *Server) Services() *service.Services {
	return s.services
}

// ncOrNil keeps a nil *cache.RulesCache from becoming a non-nil interface.
func ncOrNil(c *cache.RulesCache) ports.RulesCache {
	if c == nil {
		return nil
	}
	return c
}
