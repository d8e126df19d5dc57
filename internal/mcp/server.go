package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nvandessel/cogmap/internal/config"
	"github.com/nvandessel/cogmap/internal/metrics"
	"github.com/nvandessel/cogmap/internal/ratelimit"
	"github.com/nvandessel/cogmap/internal/store"
)

// Server wraps the MCP SDK server and provides the cogmap tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	root         string
	simulation   config.SimulationConfig
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
	epochBudget  *ratelimit.Limiter
	metrics      *metrics.Collector

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "cogmap")
	Version string // Server version
	Root    string // Project root; map files are resolved inside it

	// Store records runs made with record=true. Nil disables history.
	// The server closes it.
	Store store.RunStore

	// Simulation supplies default converge limits. Zero value means
	// config.Default().
	Simulation config.SimulationConfig

	// Logger receives operational logs. Nil discards.
	Logger *slog.Logger

	// Registerer receives simulation metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// NewServer creates a new MCP server with the cogmap tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("project root is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sim := cfg.Simulation
	if sim == (config.SimulationConfig{}) {
		sim = config.Default().Simulation
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	home, err := os.UserHomeDir()
	if err != nil {
		home = cfg.Root
	}

	s := &Server{
		server:       mcpServer,
		store:        cfg.Store,
		root:         cfg.Root,
		simulation:   sim,
		logger:       logger,
		auditLogger:  NewAuditLogger(cfg.Root, home),
		toolLimiters: ratelimit.NewToolLimiters(),
		epochBudget:  ratelimit.NewEpochBudget(),
	}
	if cfg.Registerer != nil {
		s.metrics = metrics.NewCollector(cfg.Registerer)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until the client disconnects, ctx is
// cancelled, or the process is interrupted. The server is closed on return.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "root", s.root)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the store and audit logs. Later calls return the first
// call's result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.store != nil {
			s.closeErr = s.store.Close()
		}
		if err := s.auditLogger.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
