// Package server provides the HTTP surface of the proxy: the gin engine,
// middleware and route wiring.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/cloudcode"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/modules"
	"github.com/poemonsense/antigravity-openai-proxy/internal/server/handlers"
)

// requestBodyLimit bounds request bodies (images arrive base64-inline).
const requestBodyLimit = 50 << 20

// Server is the HTTP server over the account pool and the upstream client.
type Server struct {
	engine   *gin.Engine
	accounts *account.Manager
	client   *cloudcode.Client
	stats    *modules.UsageStats
	cfg      *config.Config
}

// New assembles the server. stats may be nil to disable usage counters.
func New(cfg *config.Config, accounts *account.Manager, client *cloudcode.Client, stats *modules.UsageStats) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.SetTrustedProxies(nil)
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		accounts: accounts,
		client:   client,
		stats:    stats,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(CORSMiddleware())
	s.engine.Use(RequestIDMiddleware())
	s.engine.Use(RequestLoggingMiddleware())
	s.engine.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, requestBodyLimit)
		c.Next()
	})

	chatHandler := handlers.NewChatHandler(s.client, s.stats)
	modelsHandler := handlers.NewModelsHandler(s.client)
	healthHandler := handlers.NewHealthHandler(s.accounts)
	accountsHandler := handlers.NewAccountsHandler(s.accounts)

	s.engine.GET("/health", healthHandler.Health)

	v1 := s.engine.Group("/v1")
	v1.Use(APIKeyAuthMiddleware(s.cfg))
	{
		v1.POST("/chat/completions", chatHandler.ChatCompletions)
		v1.GET("/models", modelsHandler.ListModels)
	}

	admin := s.engine.Group("/")
	admin.Use(APIKeyAuthMiddleware(s.cfg))
	{
		admin.GET("/accounts", accountsHandler.Status)
		admin.DELETE("/accounts/:email", accountsHandler.Remove)
		admin.POST("/accounts/reset-limits", accountsHandler.ResetLimits)
		if s.stats != nil {
			usageHandler := handlers.NewUsageHandler(s.stats)
			admin.GET("/usage", usageHandler.Usage)
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"type":    "not_found_error",
				"message": fmt.Sprintf("Endpoint %s %s not found", c.Request.Method, c.Request.URL.Path),
			},
		})
	})
}

// Engine returns the gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// HTTPServer builds the http.Server for the configured bind address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
