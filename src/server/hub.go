package server

import (
	"net/http"
	"time"

	"fleet-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.latestState
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case snapshot := <-s.broadcast:
			// Update state and broadcast
			s.stateMutex.Lock()
			s.latestState = snapshot
			s.stateMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- snapshot:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a snapshot for all connected subscribers. Non-blocking:
// with the buffer full the snapshot is dropped, the next batch replaces it.
func (s *FastAPIServer) Broadcast(snapshot *models.MFleetSnapshot) {
	snapshot.Type = "UPDATE"
	select {
	case s.broadcast <- snapshot:
	default:
		s.Logger.Warning("Broadcast queue full, dropping snapshot")
	}
}

// -----------------------------------------------------------------------------

// publishSnapshot rebuilds the fleet view after an accepted batch and pushes
// it to the hub.
func (s *FastAPIServer) publishSnapshot(c *gin.Context, result models.MIngestResult) {
	view, err := s.Processor.GetAll(c.Request.Context())
	if err != nil {
		s.Logger.Warning("Snapshot rebuild failed: %v", err)
		return
	}

	s.Broadcast(&models.MFleetSnapshot{
		Type:  "UPDATE",
		Ticks: view,
		IngestMetrics: models.MIngestMetrics{
			SourceName:        result.SourceName,
			BatchTimeMs:       result.ProcessingTimeMs,
			AcceptedTicks:     result.AcceptedCount,
			ManipulationCount: result.ManipulationCount,
		},
		Timestamp: time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MFleetSnapshot, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
