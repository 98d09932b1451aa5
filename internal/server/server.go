// Package server provides the HTTP API for the acervo index.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/config"
	"github.com/acervolegal/acervo/internal/indexer"
	"github.com/acervolegal/acervo/internal/search"
	"github.com/acervolegal/acervo/internal/vectorstore"
)

// Server is the HTTP front end over the retriever and the indexer.
type Server struct {
	retriever *search.Retriever
	indexer   *indexer.Indexer
	store     vectorstore.VectorStore
	config    *config.ServerConfig
	appConfig *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. appConfig is
// optional and only enriches the status endpoint.
func NewServer(
	retriever *search.Retriever,
	idx *indexer.Indexer,
	store vectorstore.VectorStore,
	cfg *config.ServerConfig,
	appConfig *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever,
		indexer:   idx,
		store:     store,
		config:    cfg,
		appConfig: appConfig,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/documents", s.handleIndexDocument)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
