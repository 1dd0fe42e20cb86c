package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"artscope/config"
	"artscope/internal/usecase"
)

// Server exposes scanning and catalog lookups over HTTP.
type Server struct {
	scan      *usecase.ScanUseCase
	catalog   *usecase.CatalogUseCase
	cfg       config.ServerConfig
	precision int
	model     string
	logger    *slog.Logger
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Scan      *usecase.ScanUseCase
	Catalog   *usecase.CatalogUseCase
	Precision int
	Model     string
	Logger    *slog.Logger
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		scan:      deps.Scan,
		catalog:   deps.Catalog,
		cfg:       cfg,
		precision: deps.Precision,
		model:     deps.Model,
		logger:    logger,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("POST /scan/", s.handleScan)
	mux.HandleFunc("GET /artworks", s.handleListArtworks)
	mux.HandleFunc("GET /artworks/{id}", s.handleGetArtwork)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = s.recoverer(h)
	h = s.requestLogger(h)
	h = cors(s.cfg.AllowedOrigins)(h)
	h = requestID(h)
	return h
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "model", s.model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
