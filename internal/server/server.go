package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/symptomly/apiserver/config"
	"github.com/symptomly/apiserver/internal/analysis"
	"github.com/symptomly/apiserver/internal/db"
	"github.com/symptomly/apiserver/internal/handlers"
	"github.com/symptomly/apiserver/internal/logging"
	"github.com/symptomly/apiserver/internal/services"
	"github.com/symptomly/apiserver/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	log        logging.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.NewOpenAIClient(cfg.Analysis, log.With("component", "analysis"))
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	checkRepo := store.NewSymptomCheckRepository(dbConn)

	authService := services.NewAuthService(userRepo)
	checkService := services.NewSymptomCheckService(checkRepo, analyzer, log.With("component", "symptom-check"))

	authMiddleware := handlers.RequireAPIKey(authService)
	statusHandler := handlers.NewStatusHandler(dbConn, analyzer)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Root)
	router.Get("/status", statusHandler.Status)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	handlers.SymptomCheckRouter(router, checkService, authMiddleware)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it fails or a termination signal
// arrives, then shuts down gracefully.
func (s *Server) Start() error {
	ctx := context.Background()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.log.Info(ctx, "server listening", "addr", s.httpServer.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigs:
		s.log.Info(ctx, "shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		_ = s.db.Close()
		return err
	}
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
