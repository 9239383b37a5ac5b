// Command server runs the Antigravity OpenAI proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/cloudcode"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/modules"
	"github.com/poemonsense/antigravity-openai-proxy/internal/server"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/redis"
)

const version = "1.0.0"

func main() {
	var (
		debug bool
		port  int
		host  string
	)
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.IntVar(&port, "port", 0, "Listen port (default 8889, or PORT)")
	flag.StringVar(&host, "host", "", "Bind address (default 127.0.0.1)")
	flag.Parse()

	if os.Getenv("DEBUG") == "true" {
		debug = true
	}
	utils.GetLogger().SetDebug(debug)

	cfg := config.FromEnv()
	cfg.Debug = debug
	if port != 0 {
		cfg.Port = port
	}
	if host != "" {
		cfg.Host = host
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		redisClient, err = redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			utils.Warn("redis unavailable, falling back to in-memory stats: %v", err)
			redisClient = nil
		}
	}

	store := auth.NewStore(cfg.AccountsPath())
	accounts := account.NewManager(store, cfg.EndpointFallbacks())
	client := cloudcode.NewClient(accounts, cfg)

	stats := modules.NewUsageStats(redisClient)
	stats.Start()

	srv := server.New(cfg, accounts, client, stats)
	httpServer := srv.HTTPServer()

	go func() {
		utils.Info("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Error("server failed: %v", err)
			os.Exit(1)
		}
	}()

	printBanner(cfg, store.Len())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats.Stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		utils.Error("forced shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	utils.Success("server stopped")
}

func printBanner(cfg *config.Config, accountCount int) {
	fmt.Printf("\nAntigravity OpenAI Proxy v%s\n", version)
	fmt.Printf("  Listening:  http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("  Accounts:   %d (%s)\n", accountCount, cfg.AccountsPath())
	if cfg.APIKey != "" {
		fmt.Println("  Auth:       API key required")
	} else {
		fmt.Println("  Auth:       disabled (set ANTIGRAVITY_API_KEY to enable)")
	}
	fmt.Println("\nEndpoints:")
	fmt.Println("  POST /v1/chat/completions   OpenAI-compatible chat")
	fmt.Println("  GET  /v1/models             List models")
	fmt.Println("  GET  /health                Health check")
	fmt.Println("  GET  /accounts              Pool status")
	fmt.Println("  GET  /usage                 Usage statistics")
	fmt.Println("\nAdd accounts with: accounts add")
	fmt.Println()

	if accountCount == 0 {
		utils.Warn("no accounts configured, requests will fail until one is added")
	}
}
