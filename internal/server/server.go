package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/votehall/apiserver/config"
	"github.com/votehall/apiserver/internal/db"
	"github.com/votehall/apiserver/internal/handlers"
	"github.com/votehall/apiserver/internal/identity"
	"github.com/votehall/apiserver/internal/live"
	"github.com/votehall/apiserver/internal/mq"
	"github.com/votehall/apiserver/internal/services"
	"github.com/votehall/apiserver/internal/storage"
	"github.com/votehall/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and the long-lived backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.Bus
	hub        *live.Hub
	hubCancel  context.CancelFunc
	logger     *slog.Logger
}

// New constructs a fully wired Server from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.Default()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	roomRepo := store.NewRoomRepository(dbConn)
	candidateRepo := store.NewCandidateRepository(dbConn)
	voteRepo := store.NewVoteRepository(dbConn)

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}
	tokens := identity.NewTokenManager(jwtSecret, time.Duration(cfg.Auth.TokenTTLDays)*24*time.Hour)
	resolver := identity.NewResolver(tokens, userRepo)

	var oauth *identity.OAuthAuthenticator
	if cfg.OAuth.ClientID != "" && cfg.OAuth.ClientSecret != "" {
		oauth, err = identity.NewOAuthAuthenticator(cfg.OAuth, userRepo)
		if err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("init oauth: %w", err)
		}
	} else {
		logger.Info("oauth login disabled: no client credentials configured")
	}

	objectStorage, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if objectStorage == nil {
		logger.Info("object storage disabled: candidate image uploads unavailable")
	}

	bus, err := newBus(ctx, cfg.Broker)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init broker: %w", err)
	}
	if bus == nil {
		logger.Info("broker disabled: live updates limited to this instance")
	}

	hub := live.NewHub(bus, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go func() {
		_ = hub.Run(hubCtx)
	}()

	userService := services.NewUserService(userRepo)
	roomService := services.NewRoomService(roomRepo, candidateRepo)
	voteService := services.NewVoteService(roomRepo, candidateRepo, voteRepo, hub)
	statsService := services.NewStatsService(roomRepo, voteRepo, userRepo)

	authMiddleware := handlers.RequireAuth(resolver)

	authHandler := handlers.NewAuthHandler(userService, tokens, oauth, logger)
	roomHandler := handlers.NewRoomHandler(roomService, objectStorage, logger)
	voteHandler := handlers.NewVoteHandler(voteService, hub, logger)
	adminHandler := handlers.NewAdminHandler(userService, statsService, logger)

	router := chi.NewRouter()
	// No global request timeout: the event stream under /rooms holds its
	// connection open for as long as the viewer stays on the page.
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, authMiddleware, cfg.Env == "dev")
	})
	router.Route("/rooms", func(r chi.Router) {
		handlers.RoomRouter(r, roomHandler, authMiddleware)
		handlers.VoteRouter(r, voteHandler, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminHandler, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// WriteTimeout stays unset so event streams are not cut off.
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		hub:        hub,
		hubCancel:  hubCancel,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	s.hubCancel()
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// newObjectStorage selects the configured image storage backend. An empty or
// unset backend disables uploads rather than failing startup.
func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		if cfg.Minio.Endpoint == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		if cfg.GCS.Bucket == "" {
			return nil, nil
		}
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return storage.NewStorage(backend), nil
}

// newBus selects the configured broker backend for the live update channel.
func newBus(ctx context.Context, cfg config.BrokerConfig) (*mq.Bus, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		backend, err := mq.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return mq.NewBus(backend), nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.NewBus(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.NewBus(backend), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backend)
	}
}
