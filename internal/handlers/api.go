package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/engine"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/markup"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config    *common.Config
	pages     interfaces.PageStore
	issues    interfaces.IssueStore
	history   interfaces.History
	codec     *markup.Codec
	logger    arbor.ILogger
	wsHub     *WebSocketHub
	startTime time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
}

// ReadyResponse reports reachability of both remote platforms.
type ReadyResponse struct {
	Ready    bool   `json:"ready"`
	Services struct {
		Confluence bool `json:"confluence"`
		Jira       bool `json:"jira"`
	} `json:"services"`
}

// VersionResponse represents version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// UndoRequest is the body of an undo call: either a stored run id or
// the caller's own flattened items.
type UndoRequest struct {
	RunID          string            `json:"run_id,omitempty"`
	RequestingUser string            `json:"requesting_user,omitempty"`
	Items          []models.UndoItem `json:"items,omitempty"`
}

// RekeyRequest is the body of a project-rekey call.
type RekeyRequest struct {
	RootPage          string `json:"root_page"`
	OldProjectKey     string `json:"old_project_key"`
	NewParentIssueKey string `json:"new_parent_issue_key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, pages interfaces.PageStore, issues interfaces.IssueStore, history interfaces.History, logger arbor.ILogger, wsHub *WebSocketHub) *APIHandlers {
	return &APIHandlers{
		config:    config,
		pages:     pages,
		issues:    issues,
		history:   history,
		codec:     markup.NewCodec(config.Jira.ServerName, config.Jira.ServerID),
		logger:    logger,
		wsHub:     wsHub,
		startTime: time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	})
}

// ReadyHandler verifies both remote platforms with minimal reads.
func (h *APIHandlers) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp ReadyResponse
	resp.Services.Confluence = h.pages.HealthCheck(ctx) == nil
	resp.Services.Jira = h.issues.HealthCheck(ctx) == nil
	resp.Ready = resp.Services.Confluence && resp.Services.Jira

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// VersionHandler returns build information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	})
}

// ConfigHandler returns the active configuration with secrets redacted
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Redacted())
}

// SyncHandler runs one synchronization run and persists its result.
func (h *APIHandlers) SyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	orchestrator := engine.NewOrchestrator(h.pages, h.issues, h.codec,
		h.config.Sync.DefaultDaysToDueDate, h.logger).WithNotifier(h.wsHub)

	result, err := orchestrator.Run(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if err := h.history.SaveRun(result); err != nil {
		h.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Could not persist run result")
	}

	writeJSON(w, http.StatusOK, result)
}

// UndoHandler reverses a prior run, either from the stored history
// (run_id) or from caller-supplied flattened items.
func (h *APIHandlers) UndoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req UndoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	items := req.Items
	if req.RunID != "" {
		stored, err := h.history.LoadRun(req.RunID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		items = stored.UndoItems(req.RequestingUser)
	}

	undo := engine.NewUndoOrchestrator(h.pages, h.issues, h.codec, h.logger)
	result := undo.Run(r.Context(), items)
	if req.RunID != "" {
		result.RunID = req.RunID
		if err := h.history.SaveUndo(result); err != nil {
			h.logger.Error().Err(err).Str("run_id", req.RunID).Msg("Could not persist undo result")
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// RekeyHandler bulk-rewrites issue macros across a page hierarchy.
func (h *APIHandlers) RekeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req RekeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updater := engine.NewHierarchyUpdater(h.pages, h.logger)
	result, err := updater.Run(r.Context(), req.RootPage, req.OldProjectKey, req.NewParentIssueKey)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RunsHandler lists stored runs, or returns one when ?id= is given.
func (h *APIHandlers) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		run, err := h.history.LoadRun(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	runs, err := h.history.LoadAllRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// writeEngineError maps classified engine errors onto HTTP status codes.
func (h *APIHandlers) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case common.IsType(err, common.ErrorTypeInvalidInput):
		status = http.StatusBadRequest
	case common.IsType(err, common.ErrorTypeSetup),
		common.IsType(err, common.ErrorTypeParentNotFound),
		common.IsType(err, common.ErrorTypeMissingData):
		status = http.StatusUnprocessableEntity
	}
	h.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
