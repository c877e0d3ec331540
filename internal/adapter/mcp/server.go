// Package mcp exposes the energy, OKR and review-queue analytics as Model Context
// Protocol tools over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/domain/okr"
)

// EnergyService is the subset of energy operations the tools call.
type EnergyService interface {
	Record(ctx context.Context, c access.Claims, req energy.RecordRequest) (*energy.Reading, error)
	AverageForPeriod(ctx context.Context, c access.Claims, userID string, start, end time.Time) (energy.PeriodSummary, error)
}

// OKRService is the subset of OKR analytics the tools call.
type OKRService interface {
	ObjectiveProgress(ctx context.Context, c access.Claims, quarter, objectiveID string) ([]okr.ObjectiveProgress, error)
	AtRisk(ctx context.Context, c access.Claims, quarter string, days *int) ([]okr.AtRiskKeyResult, error)
	Overview(ctx context.Context, c access.Claims, quarter string) ([]okr.ContextOverview, error)
}

// ReviewQueue lists documents awaiting human review.
type ReviewQueue interface {
	ReviewQueue(ctx context.Context, c access.Claims) ([]extraction.ReviewQueueEntry, error)
}

// ServerConfig holds the MCP listener settings. Claims are fixed per deployment.
// APIKey is consulted per request; nil leaves the endpoint unauthenticated.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  func() string
	Claims  access.Claims
}

// ServerDeps are the services behind the tools. Nil services make their tools report an
// error result.
type ServerDeps struct {
	Energy EnergyService
	OKRs   OKRService
	Review ReviewQueue
	Now    func() time.Time
}

// Server wraps an mcp-go server and its HTTP listener.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a Server with every tool and resource registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the authenticated streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("mcp server listening", "addr", ln.Addr().String(), "tenant_id", s.cfg.Claims.TenantID)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
