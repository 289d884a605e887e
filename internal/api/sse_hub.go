package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"echidna/domain/core"
	"echidna/ports"
)

const pingInterval = 30 * time.Second

// sseClient is one connected stream. An empty runID receives every run.
type sseClient struct {
	runID   core.RunID
	channel chan ports.ProgressEvent
}

// SSEHub fans progress events out to server-sent event streams
type SSEHub struct {
	clients    map[chan ports.ProgressEvent]core.RunID
	clientsMu  sync.RWMutex
	register   chan sseClient
	unregister chan sseClient
	broadcast  chan ports.ProgressEvent
	done       chan struct{}
	logger     *zap.Logger
}

var _ ports.ProgressReporter = (*SSEHub)(nil)

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub(logger *zap.Logger) *SSEHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &SSEHub{
		clients:    make(map[chan ports.ProgressEvent]core.RunID),
		register:   make(chan sseClient, 10),
		unregister: make(chan sseClient, 10),
		broadcast:  make(chan ports.ProgressEvent, 100),
		done:       make(chan struct{}),
		logger:     logger,
	}

	go hub.run()
	return hub
}

func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client.channel] = client.runID
			h.logger.Debug("sse client registered",
				zap.String("run_id", client.runID.String()),
				zap.Int("clients", len(h.clients)))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client.channel]; ok {
				delete(h.clients, client.channel)
				close(client.channel)
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for ch, runID := range h.clients {
				if runID != "" && runID != event.RunID {
					continue
				}
				select {
				case ch <- event:
				default:
					h.logger.Warn("sse client channel full, skipping event",
						zap.String("run_id", event.RunID.String()))
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for ch := range h.clients {
				close(ch)
			}
			h.clients = make(map[chan ports.ProgressEvent]core.RunID)
			h.clientsMu.Unlock()
			return
		}
	}
}

// Report queues an event for broadcast, dropping it when the queue is full
func (h *SSEHub) Report(event ports.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("sse broadcast channel full, dropping event", zap.String("stage", event.Stage))
	}
}

// Close stops the dispatch loop and ends every stream
func (h *SSEHub) Close() {
	close(h.done)
}

// ClientCount returns the number of connected streams
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HandleSSE streams progress events, optionally for a single run
func (h *SSEHub) HandleSSE(c *gin.Context) {
	var runID core.RunID
	if v := c.Query("run_id"); v != "" {
		id, err := core.ParseRunID(v)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid run ID"})
			return
		}
		runID = id
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan ports.ProgressEvent, 10)
	select {
	case h.register <- sseClient{runID: runID, channel: clientChan}:
	default:
		c.JSON(503, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- sseClient{runID: runID, channel: clientChan}:
		case <-h.done:
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal progress event", zap.Error(err))
				return true
			}
			c.SSEvent("progress", string(payload))
			terminal := event.Stage == ports.StageFinished || event.Stage == ports.StageError
			return runID == "" || !terminal

		case <-ticker.C:
			c.SSEvent("ping", `{"status":"alive"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}
