package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/federation"
	"github.com/rmax-ai/fractald/pkg/graph"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8789"

const maxBodyBytes = 1 << 20

// GraphStore is the subset of *graph.Store the handlers need.
type GraphStore interface {
	Stats() graph.StorageStats
	GetNode(id string) (graph.Node, error)
	List() []graph.Node
	GetExpansion(id string) (graph.Expansion, error)
	Subnodes(id string) ([]graph.Node, error)
	NodesByFamily(name string) ([]graph.Node, error)
	CreateContribution(nc graph.NewContribution) (graph.Receipt, error)
	GetContributionByHash(hash string) (graph.Contribution, error)
	GetContributionsByNode(nodeID string) []graph.Contribution
	GetContributionsByUser(userID string) []graph.Contribution
	RecentContributions(n int) []graph.Contribution
	Contributions() []graph.Contribution
}

// Server serves the fractal node HTTP API
type Server struct {
	store    GraphStore
	peers    *federation.Directory
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server
	now      func() time.Time

	baseURL string
	peerTTL time.Duration

	// TLS Config
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer creates a new API server instance. A nil peers directory
// serves the default peer list; a nil logger discards logs.
func NewServer(st GraphStore, peers *federation.Directory, addr string, logger *zap.Logger) *Server {
	if peers == nil {
		peers = federation.NewDirectory(federation.DefaultPeers())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		store:    st,
		peers:    peers,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
		baseURL:  "http://" + addr,
		peerTTL:  federation.DefaultTTL,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(withLogging(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(withSecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/storage/stats", s.handleStats)

	r.Route("/contributions", func(r chi.Router) {
		r.Get("/export", s.handleExport)
		r.Get("/node/{nodeID}", s.handleContributionsByNode)
		r.Get("/user/{userID}", s.handleContributionsByUser)
		r.Get("/{hash}", s.handleContribution)
	})

	r.Post("/inbox", s.handleInbox)
	r.Get("/outbox", s.handleOutbox)

	r.Route("/fractal", func(r chi.Router) {
		r.Get("/expand/{nodeID}", s.handleExpand)
		r.Get("/nodes/{nodeID}", s.handleNode)
		r.Get("/subnodes/{nodeID}", s.handleSubnodes)
		r.Get("/context/{family}", s.handleFamily)
		r.Get("/levels", s.handleLevels)
	})

	r.Get("/.well-known/webfinger", s.handleWebFinger)
	r.Get("/actor", s.handleActor)
	r.Get("/federation/peers", s.handlePeers)
	r.Get("/federation/sync", s.handleSync)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Details: r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
	})

	return r
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetBaseURL sets the public URL used in ActivityPub documents
func (s *Server) SetBaseURL(u string) {
	if u != "" {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// SetPeerTTL sets how long a peer stays active after its last activity
func (s *Server) SetPeerTTL(ttl time.Duration) {
	if ttl > 0 {
		s.peerTTL = ttl
	}
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("server_starting_tls", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	s.logger.Info("server_starting", zap.String("addr", s.server.Addr), zap.String("base_url", s.baseURL))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}
