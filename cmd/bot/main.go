package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxybot/internal/api"
	"proxybot/internal/commands"
	"proxybot/internal/config"
	"proxybot/internal/database"
	"proxybot/internal/platforms/discord"
	"proxybot/internal/proxy"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	fmt.Println("🎭 Proxy Bot Starting...")

	// Load configuration
	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("❌ BOT_TOKEN is not set")
	}

	// Initialize database
	fmt.Println("🗄️ Initializing database...")
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Discord client
	fmt.Println("🎮 Initializing Discord bot...")
	client, err := discord.NewClient(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create Discord client: %v", err)
	}

	// Build the proxy pipeline
	fmt.Println("🔄 Building proxy caches...")
	cache := proxy.NewCache(db)
	cache.Rebuild()

	webhooks := proxy.NewWebhookManager(client, db, cfg.WebhookSweepInterval)
	webhooks.Start()

	dispatcher := proxy.NewDispatcher(client, db, cache, webhooks, cfg.CommandPrefix)
	router := commands.NewRouter(cfg.CommandPrefix, db, cache, webhooks, client, dispatcher)

	handler := discord.NewMessageHandler(client, cfg.CommandPrefix, dispatcher, router)
	handler.SetupHandlers()

	// Connect to Discord
	if err := client.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect to Discord: %v", err)
	}

	// Start the health API if enabled
	var apiServer *api.Server
	if cfg.APIEnable {
		apiServer = api.NewServer(cfg.APIPort, client, webhooks)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("❌ %v", err)
			}
		}()
	} else {
		fmt.Println("⏭️ Health API is disabled in configuration")
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	fmt.Println("✅ Proxy bot is running. Press Ctrl+C to stop.")
	<-stop

	fmt.Println("🛑 Shutting down proxy bot...")

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("⚠️ Health API shutdown: %v", err)
		}
		cancel()
	}

	webhooks.Stop()
	client.Disconnect()

	fmt.Println("👋 Proxy bot stopped.")
}
