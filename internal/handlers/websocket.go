package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// WebSocketHub manages active WebSocket connections and streams run
// progress events to them. It implements engine.ProgressNotifier.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     arbor.ILogger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger arbor.ILogger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts
func (h *WebSocketHub) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case <-ticker.C:
			h.sendEvent("heartbeat", nil)
		}
	}
}

// sendEvent broadcasts one typed event to all clients.
func (h *WebSocketHub) sendEvent(eventType string, data interface{}) {
	msg := map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}
	jsonData, _ := json.Marshal(msg)
	select {
	case h.broadcast <- jsonData:
	default:
		// Drop the event rather than stall a run on a slow consumer.
	}
}

// RunStarted implements engine.ProgressNotifier.
func (h *WebSocketHub) RunStarted(runID string, pageCount int) {
	h.sendEvent("run_started", map[string]interface{}{
		"run_id": runID,
		"pages":  pageCount,
	})
}

// TaskSynced implements engine.ProgressNotifier.
func (h *WebSocketHub) TaskSynced(runID string, result models.TaskCreationResult) {
	h.sendEvent("task_synced", map[string]interface{}{
		"run_id": runID,
		"result": result,
	})
}

// PageUpdated implements engine.ProgressNotifier.
func (h *WebSocketHub) PageUpdated(runID string, result models.PageUpdateResult) {
	h.sendEvent("page_updated", map[string]interface{}{
		"run_id": runID,
		"result": result,
	})
}

// RunFinished implements engine.ProgressNotifier.
func (h *WebSocketHub) RunFinished(result *models.RunResult) {
	h.sendEvent("run_finished", result)
}

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connection requests
func (h *WebSocketHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register <- conn

	// Keep connection alive and drain client messages
	go func() {
		defer func() {
			h.unregister <- conn
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
