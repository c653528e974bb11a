package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Market   interfaces.IMarketService
	Session  interfaces.ISessionService
	Calendar interfaces.IMarketCalendar
	Metrics  *utils.MetricsManager

	engine     *gin.Engine
	httpServer *http.Server
	now        func() time.Time

	// WebSocket registry, owned by the hub goroutine
	clients     map[*Client]struct{}
	broadcast   chan outbound
	direct      chan outbound
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	watch       chan watchRequest
	expiries    chan chan []string
	subscribers atomic.Int64
	// unix ms of the last client ping, zero before any
	lastActivity atomic.Int64
	done         chan struct{}
	stopped      atomic.Bool
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(
	cfg *models.MConfig,
	market interfaces.IMarketService,
	session interfaces.ISessionService,
	calendar interfaces.IMarketCalendar,
	metrics *utils.MetricsManager,
	log *logger.Logger,
) *FastAPIServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:     cfg,
		Logger:     log,
		Market:     market,
		Session:    session,
		Calendar:   calendar,
		Metrics:    metrics,
		engine:     gin.New(),
		now:        time.Now,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 256),
		direct:     make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		watch:      make(chan watchRequest),
		expiries:   make(chan chan []string),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/dashboard", s.getDashboard)
	api.GET("/options", s.getOptions)
	api.GET("/market-data", s.getMarketData)
	api.GET("/expiry-dates", s.getExpiryDates)
	api.GET("/system-status", s.getSystemStatus)
	api.POST("/login", s.postLogin)
	api.POST("/logout", s.postLogout)
	api.GET("/metrics", s.getMetrics)
	api.GET("/config", s.getConfig)

	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mostly for httptest.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP server down and closes every websocket.
func (s *FastAPIServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.stopped.CompareAndSwap(false, true) {
		close(s.done)
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
