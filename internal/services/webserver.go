package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/handlers"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/middleware"
)

// webServer exposes the sync/undo/rekey operations and monitoring
// endpoints over HTTP.
type webServer struct {
	config      *common.Config
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	wsHub       *handlers.WebSocketHub
	running     bool
	startTime   time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg *common.Config, pages interfaces.PageStore, issues interfaces.IssueStore, history interfaces.History, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	// WebSocket hub first: the sync handler streams progress through it
	wsHub := handlers.NewWebSocketHub(logger)

	apiHandlers := handlers.NewAPIHandlers(cfg, pages, issues, history, logger, wsHub)

	ws := &webServer{
		config:      cfg,
		logger:      logger,
		apiHandlers: apiHandlers,
		wsHub:       wsHub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: mux,
		},
	}

	// Create middleware chain
	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS

	// Register API endpoints with middleware
	mux.HandleFunc("/health", logMiddleware(corsMiddleware(apiHandlers.HealthHandler)))
	mux.HandleFunc("/ready", logMiddleware(corsMiddleware(apiHandlers.ReadyHandler)))
	mux.HandleFunc("/version", logMiddleware(corsMiddleware(apiHandlers.VersionHandler)))
	mux.HandleFunc("/config", logMiddleware(corsMiddleware(apiHandlers.ConfigHandler)))
	mux.HandleFunc("/api/sync", logMiddleware(corsMiddleware(apiHandlers.SyncHandler)))
	mux.HandleFunc("/api/undo", logMiddleware(corsMiddleware(apiHandlers.UndoHandler)))
	mux.HandleFunc("/api/rekey", logMiddleware(corsMiddleware(apiHandlers.RekeyHandler)))
	mux.HandleFunc("/api/runs", logMiddleware(corsMiddleware(apiHandlers.RunsHandler)))

	// Register WebSocket endpoint
	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Server.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running
}
