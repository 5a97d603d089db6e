package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codearena/apiserver/config"
	"github.com/codearena/apiserver/internal/db"
	"github.com/codearena/apiserver/internal/handlers"
	"github.com/codearena/apiserver/internal/judge"
	"github.com/codearena/apiserver/internal/mq"
	"github.com/codearena/apiserver/internal/services"
	"github.com/codearena/apiserver/internal/storage"
	"github.com/codearena/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a fully wired Server: database, execution client,
// optional broker and object storage, stores, services and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	executor, err := judge.NewClient(cfg.Judge)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var events services.Events = services.NopEvents{}
	if broker != nil {
		events = mq.NewEventPublisher(broker)
	}

	bundleStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		closeAll(dbConn, broker)
		return nil, err
	}
	if bundleStorage != nil {
		if err := bundleStorage.EnsureBucket(ctx); err != nil {
			closeAll(dbConn, broker)
			return nil, err
		}
	}

	problemRepo := store.NewProblemRepository(dbConn)
	participantRepo := store.NewParticipantRepository(dbConn)
	submissionRepo := store.NewSubmissionRepository(dbConn)
	achievementRepo := store.NewAchievementRepository(dbConn)
	gradingStore := store.NewGradingStore(dbConn)

	evaluator := judge.NewEvaluator(executor)

	achievementService := services.NewAchievementService(achievementRepo, participantRepo, events)
	acceptance := services.NewAcceptanceCoordinator(participantRepo, achievementService)
	participantService := services.NewParticipantService(participantRepo)
	problemService := services.NewProblemService(problemRepo, bundleStorage)
	submissionService := services.NewSubmissionService(evaluator, submissionRepo, problemRepo, acceptance, events)
	leaderboardService := services.NewLeaderboardService(problemRepo, submissionRepo)
	gradingService := services.NewGradingService(
		problemRepo,
		submissionRepo,
		func(ctx context.Context) (services.RewardTx, error) {
			return gradingStore.Begin(ctx)
		},
		events,
	)

	authMiddleware := handlers.RequireAuth(jwtSecret)
	problemHandler := handlers.NewProblemHandler(problemService, participantService, leaderboardService, gradingService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService)
	achievementHandler := handlers.NewAchievementHandler(achievementService, participantService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, participantService, jwtSecret)
	})
	router.Route("/problems", func(r chi.Router) {
		handlers.ProblemRouter(r, problemHandler, submissionHandler, authMiddleware)
	})
	router.Route("/achievements", func(r chi.Router) {
		handlers.AchievementRouter(r, achievementHandler)
	})
	router.Route("/participants", func(r chi.Router) {
		handlers.ParticipantRouter(r, achievementHandler, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	closeAll(s.db, s.broker)
	return s.httpServer.Close()
}

func closeAll(dbConn *sql.DB, broker *mq.MQ) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
	if broker != nil {
		_ = broker.Close()
	}
}
