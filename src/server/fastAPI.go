package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"fleet-observer/src/confirm"
	"fleet-observer/src/helpers"
	"fleet-observer/src/logger"
	"fleet-observer/src/models"
	"fleet-observer/src/registry"
	"fleet-observer/src/ticks"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	Processor *ticks.Processor
	Registry  *registry.Registry
	Ingestor  *confirm.Ingestor

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MFleetSnapshot // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestState *models.MFleetSnapshot
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, log *logger.Logger, processor *ticks.Processor, reg *registry.Registry, ingestor *confirm.Ingestor) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:    cfg,
		Logger:    log,
		engine:    gin.Default(),
		Processor: processor,
		Registry:  reg,
		Ingestor:  ingestor,
		clients:   make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		// Queue size of 256 ensures we can handle bursts of updates
		broadcast:  make(chan *models.MFleetSnapshot, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestState: &models.MFleetSnapshot{
			Type:          "INITIAL",
			Ticks:         make(map[string]models.MTick),
			IngestMetrics: models.MIngestMetrics{},
			Timestamp:     0,
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	// Tick ingestion & views
	s.engine.POST("/api/ticks", s.postTicks)
	s.engine.GET("/api/ticks", s.getTicks)
	s.engine.GET("/api/spreads", s.getSpreads)
	s.engine.GET("/api/health", s.getHealth)

	// Agent lifecycle
	s.engine.POST("/api/agents/register", s.postRegister)
	s.engine.POST("/api/agents/heartbeat", s.postHeartbeat)
	s.engine.POST("/api/agents/disconnect", s.postDisconnect)
	s.engine.POST("/api/agents/switch", s.postSwitch)
	s.engine.GET("/api/agents", s.getAgents)
	s.engine.GET("/api/agents/stats", s.getAgentStats)

	// Trade statistics
	s.engine.GET("/api/stats/winrate", s.getWinRate)
	s.engine.GET("/api/positions/open", s.getOpenPositions)
	s.engine.GET("/api/trades/recent", s.getRecentTrades)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Tick Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) postTicks(c *gin.Context) {
	var batch models.MTickBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(400, gin.H{"status": "bad request"})
		return
	}

	result, err := s.Processor.Ingest(c.Request.Context(), batch)
	if err != nil {
		if errors.Is(err, helpers.ErrForbiddenSource) {
			s.Logger.Warning("Rejected batch from agent %s: %v", batch.AgentUUID, err)
			c.JSON(403, gin.H{"status": "forbidden source"})
			return
		}
		if helpers.IsRejectedInput(err) {
			c.JSON(400, gin.H{"status": "bad request"})
			return
		}
		s.Logger.Error("Ingest failed: %v", err)
		c.JSON(500, gin.H{"status": "error"})
		return
	}

	s.publishSnapshot(c, result)
	c.JSON(200, result)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getTicks(c *gin.Context) {
	view, err := s.Processor.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, view)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSpreads(c *gin.Context) {
	analysis, err := s.Processor.GetSpreadAnalysis(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, analysis)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	health := s.Processor.Health(c.Request.Context())

	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":        health.Status,
		"health":        health,
		"connections":   connections,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------
// Agent Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) postRegister(c *gin.Context) {
	var handshake models.MHandshake
	if err := c.ShouldBindJSON(&handshake); err != nil {
		c.JSON(400, gin.H{"status": "bad request"})
		return
	}

	record, err := s.Registry.Register(c.Request.Context(), handshake)
	if err != nil {
		if helpers.IsRejectedInput(err) {
			c.JSON(400, gin.H{"status": "bad request"})
			return
		}
		s.Logger.Error("Register failed: %v", err)
		c.JSON(500, gin.H{"status": "error"})
		return
	}

	c.JSON(200, gin.H{"status": "registered", "node_id": record.NodeID, "session_id": record.SessionID})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postHeartbeat(c *gin.Context) {
	var hb models.MHeartbeat
	if err := c.ShouldBindJSON(&hb); err != nil {
		c.JSON(400, gin.H{"status": "bad request"})
		return
	}

	// Unknown or terminated nodes get ok=false, never an error. The agent
	// side treats that as a signal to re-register.
	ok := s.Registry.Heartbeat(c.Request.Context(), hb)
	c.JSON(200, gin.H{"ok": ok})
}

// -----------------------------------------------------------------------------

type disconnectRequest struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

func (s *FastAPIServer) postDisconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NodeID == "" {
		c.JSON(400, gin.H{"status": "bad request"})
		return
	}

	ok := s.Registry.Disconnect(c.Request.Context(), req.NodeID, req.Reason)
	c.JSON(200, gin.H{"ok": ok})
}

// -----------------------------------------------------------------------------

type switchRequest struct {
	NodeID    string            `json:"node_id"`
	Handshake models.MHandshake `json:"handshake"`
}

func (s *FastAPIServer) postSwitch(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NodeID == "" {
		c.JSON(400, gin.H{"status": "bad request"})
		return
	}

	record, err := s.Registry.SwitchAccount(c.Request.Context(), req.NodeID, req.Handshake)
	if err != nil {
		if helpers.IsRejectedInput(err) {
			c.JSON(400, gin.H{"status": "bad request"})
			return
		}
		s.Logger.Error("Account switch failed: %v", err)
		c.JSON(500, gin.H{"status": "error"})
		return
	}

	c.JSON(200, gin.H{"status": "switched", "node_id": record.NodeID, "session_id": record.SessionID})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getAgents(c *gin.Context) {
	agents, err := s.Registry.GetActive(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, gin.H{"count": len(agents), "agents": agents})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getAgentStats(c *gin.Context) {
	stats, err := s.Registry.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, stats)
}

// -----------------------------------------------------------------------------
// Trade Statistics Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getWinRate(c *gin.Context) {
	scope := c.DefaultQuery("scope", confirm.ScopeGlobal)

	rate, ok := s.Ingestor.WinRate(c.Request.Context(), scope)
	if !ok {
		// No closed trades recorded for this scope yet. An explicit marker,
		// never a fake 0% rate.
		c.JSON(200, gin.H{"scope": scope, "status": "no_data"})
		return
	}

	c.JSON(200, gin.H{
		"scope":    scope,
		"win_rate": rate,
		"stats":    s.Ingestor.Stats(c.Request.Context(), scope),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getOpenPositions(c *gin.Context) {
	positions, err := s.Ingestor.OpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, gin.H{"count": len(positions), "positions": positions})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getRecentTrades(c *gin.Context) {
	scope := c.DefaultQuery("scope", confirm.ScopeGlobal)
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}

	trades, err := s.Ingestor.RecentTrades(c.Request.Context(), scope, limit)
	if err != nil {
		s.Logger.Error("Recent trades lookup failed: %v", err)
		c.JSON(500, gin.H{"status": "error"})
		return
	}
	c.JSON(200, gin.H{"scope": scope, "count": len(trades), "trades": trades})
}
