package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ideanator/ideanator/pkg/config"
	"github.com/ideanator/ideanator/pkg/db"
	"github.com/ideanator/ideanator/pkg/event"
	"github.com/ideanator/ideanator/pkg/handler"
	"github.com/ideanator/ideanator/pkg/service"
	"github.com/ideanator/ideanator/pkg/utils"
)

type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	cfg       *config.AppConfig
	port      int
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: the backend is local-only, so allow the usual
	// localhost dev origins and reject everything else.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	attachStatic(ginEngine)

	server := &Server{
		ginEngine: ginEngine,
		logger:    utils.GetLogger(),
		cfg:       cfg,
	}

	if err := server.SetupRoutes(); err != nil {
		return nil, err
	}

	return server, nil
}

// Port returns the port the server is bound to.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Listen for context cancellation for graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: if startup fails immediately return error; otherwise
	// return nil to let main continue.
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes() error {
	dbPath, err := s.cfg.DatabasePath()
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	gdb, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	store := db.NewStore(gdb)

	// Owned stores, restored from their slots.
	registry := service.NewConversationRegistry(store)
	ledger := service.NewMessageLedger(store)
	correlator := service.NewSessionCorrelator(store)
	prefs := service.NewPreferencesService(store)

	assistant := service.NewHTTPAssistant(s.cfg.AssistantEndpoint())
	controller := service.NewDialogueController(registry, ledger, correlator, assistant)

	chatHandler := handler.NewChatHandler(controller, registry, ledger, prefs)
	wsHandler := event.NewWSHandler()

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")
	chatHandler.RegisterRoutes(apiGroup)

	// Event notification feed
	// /api/events/ws
	apiGroup.GET("/events/ws", wsHandler.Handle)

	return nil
}
