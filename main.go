package main

import (
	"context"
	"log"
	"os"

	"github.com/Nsabwe/Cchat/config"
	"github.com/Nsabwe/Cchat/modules/api"
	"github.com/Nsabwe/Cchat/modules/broadcast"
	"github.com/Nsabwe/Cchat/modules/cache"
	"github.com/Nsabwe/Cchat/modules/notify"
	"github.com/Nsabwe/Cchat/modules/relay"
	"github.com/Nsabwe/Cchat/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Cchat Relay - Fiber + WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	storeModule := store.NewModule(store.Config{
		Driver:        cfg.StoreDriver,
		DBPath:        cfg.DBPath,
		DBDebug:       cfg.DBDebug,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		Timeout:       cfg.StoreTimeout,
	})
	cacheModule := cache.NewModule(cache.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Prefix:        cfg.TipKeyPrefix,
	})
	broadcastModule := broadcast.NewModule(broadcast.Config{
		QueueSize:    cfg.SendQueueSize,
		WriteTimeout: cfg.WriteTimeout,
	})

	relayModule, err := relay.NewModule(relay.Config{
		PromotionDelay:    cfg.ReadPromotionDelay,
		PersistRetries:    cfg.PersistRetries,
		PersistRetryDelay: cfg.PersistRetryDelay,
		StoreTimeout:      cfg.StoreTimeout,
		HistoryLimit:      cfg.HistoryLimit,
		MessageIndexSize:  cfg.MessageIndexSize,
		MaxMessageLength:  cfg.MaxMessageSize,
	}, relay.Deps{
		Sender: broadcastModule.GetHub(),
		Store:  storeModule,
		Ledger: cacheModule,
		Logger: app.Logger(),
	})
	if err != nil {
		log.Fatalf("Failed to create relay module: %v", err)
	}

	notifyModule := notify.NewModule(notify.Config{
		VAPID: notify.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		},
		Pool: notify.PoolConfig{
			NumWorkers:  cfg.PushWorkers,
			QueueSize:   cfg.PushQueueSize,
			PushTimeout: cfg.PushTimeout,
		},
		Icon: cfg.PushIcon,
	}, storeModule)

	apiModule := api.NewModule(api.Config{
		Port:             cfg.Port,
		MaxMessageLength: cfg.MaxMessageSize,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
	})

	// The engine and hub are not exposed via ServiceContainer
	apiModule.SetEngine(relayModule.Engine())
	apiModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Modules stop in reverse order, so the hub closes connections and waits
	// for their sessions before the relay engine shuts down.
	// - store: persistence backend (sqlite, mongo or memory)
	// - cache: tip ledger (Redis or memory)
	// - relay: chat engine (ServiceProviderModule + EventEmitterModule)
	// - broadcast: WebSocket hub, the relay's frame sender
	// - notify: Web Push for offline users (EventConsumerModule)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on relay)
	app.Register(storeModule)
	app.Register(cacheModule)
	app.Register(relayModule)
	app.Register(broadcastModule)
	app.Register(notifyModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	ledger := "memory"
	if cfg.RedisAddr != "" {
		ledger = "redis " + cfg.RedisAddr
	}
	push := "disabled"
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		push = "enabled"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Printf("  - Store: %s", cfg.StoreDriver)
	log.Printf("  - Tip ledger: %s", ledger)
	log.Printf("  - Web Push: %s", push)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  POST   /api/v1/users                    - Register a user")
	log.Println("  GET    /api/v1/users/online             - List online users")
	log.Println("  GET    /api/v1/rooms/:roomKey/messages  - Room history (?viewer=&peer=&limit=)")
	log.Println("  POST   /api/v1/push/subscribe           - Save a Web Push subscription")
	log.Println("  GET    /api/v1/tips/:userId             - Tip total of a user")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Client frames: join, joinPrivate, message, typing, stopTyping,")
	log.Println("                 editMessage, deleteMessage, messageRead, sendTip")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
