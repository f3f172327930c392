// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mcp-dish-order/internal/auth"
	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/config"
	"mcp-dish-order/internal/inventory"
	"mcp-dish-order/internal/observability"
)

type Config struct {
	Host string
	Port int
}

// Deps are the long-lived components the server routes tool calls to.
type Deps struct {
	Catalog       catalog.Source
	Inventory     *inventory.Manager
	Authenticator auth.Authenticator
	Metrics       *observability.Metrics
	Tracer        trace.Tracer
	Logger        *zap.Logger
	// Ping reports storage health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

type DishOrderServer struct {
	server     *server.Server
	httpServer *http.Server
	tools      map[string]toolHandler

	catalog   catalog.Source
	inventory *inventory.Manager
	auth      auth.Authenticator
	metrics   *observability.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	ping      func(ctx context.Context) error
	config    *Config
}

func NewDishOrderServer(cfg *Config, deps Deps) (*DishOrderServer, error) {
	if deps.Catalog == nil || deps.Inventory == nil {
		return nil, fmt.Errorf("catalog source and inventory manager are required")
	}
	s := &DishOrderServer{
		catalog:   deps.Catalog,
		inventory: deps.Inventory,
		auth:      deps.Authenticator,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
		ping:      deps.Ping,
		config:    cfg,
	}
	if s.auth == nil {
		s.auth = auth.HeaderAuthenticator{}
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("mcp-dish-order/server")
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	// Create MCP server (without transport, we'll handle HTTP manually)
	mcpServer, err := server.NewServer(
		nil,
		server.WithServerInfo(protocol.Implementation{
			Name:    config.ServiceName,
			Version: config.ServiceVersion,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	s.server = mcpServer

	s.registerTools()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler exposes the routes without a listener.
func (s *DishOrderServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *DishOrderServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.HeaderUserID+", "+auth.HeaderAuthMethod)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "Method not allowed")
		return
	}

	// Decode the MCP request
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		writeError(w, http.StatusNotFound, "", fmt.Sprintf("Unknown tool: %s", request.Name))
		return
	}

	result, err := handler(r.Context(), r, &request)
	if err != nil {
		s.writeToolError(w, request.Name, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.status)
	if err := json.NewEncoder(w).Encode(result.body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err), zap.String("tool", request.Name))
	}
}

func (s *DishOrderServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.Error("Health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "", "storage unavailable")
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// toolError is a failure the caller is allowed to see.
type toolError struct {
	status  int
	code    string
	message string
}

func (e *toolError) Error() string {
	return e.message
}

func (s *DishOrderServer) writeToolError(w http.ResponseWriter, tool string, err error) {
	var te *toolError
	if errors.As(err, &te) {
		writeError(w, te.status, te.code, te.message)
		return
	}
	// Storage and other internal failures stay in the logs.
	s.logger.Error("Tool call failed", zap.String("tool", tool), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "", internalMessage(tool))
}

func internalMessage(tool string) string {
	switch tool {
	case "place_order":
		return "Database error during the creation of order."
	case "cancel_order":
		return "Database error during the deletion of order."
	default:
		return "Internal server error."
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *DishOrderServer) Start(ctx context.Context) error {
	s.logger.Info("Starting dish order server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *DishOrderServer) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
