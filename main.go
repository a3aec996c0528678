package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/roomswap/middleware/ratelimit"
	"github.com/example/roomswap/modules/api"
	"github.com/example/roomswap/modules/broadcast"
	"github.com/example/roomswap/modules/ledger"
	"github.com/example/roomswap/modules/negotiation"
	"github.com/example/roomswap/modules/session"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== RoomSwap - Room Allocation & Price Negotiation ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Optional Redis-backed throttling, middleware must be registered
	// before the modules whose services it wraps
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		throttle, err := ratelimit.New(
			ratelimit.WithRedisAddr(redisAddr),
			ratelimit.WithRedisPassword(os.Getenv("REDIS_PASSWORD")),
			ratelimit.WithServiceLimit(negotiation.ServiceSubmitOffer, 20, time.Minute),
		)
		if err != nil {
			log.Fatalf("Failed to create rate limiting middleware: %v", err)
		}
		app.Register(throttle)
	}

	// Create modules
	negotiationConfig, err := negotiation.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid negotiation configuration: %v", err)
	}
	negotiationModule := negotiation.NewModule(negotiationConfig, logger)

	sessionModule, err := session.NewModule(logger)
	if err != nil {
		log.Fatalf("Failed to create session module: %v", err)
	}

	ledgerModule := ledger.NewModule(logger)
	broadcastModule := broadcast.NewModule()
	apiModule := api.NewModule()

	// Inject broadcast hub into API module
	// (This is done manually because the hub is not exposed via ServiceContainer)
	apiModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - negotiation: Core engine (ServiceProviderModule + EventEmitterModule)
	// - session: Access secret gate + token issuing (ServiceProviderModule)
	// - ledger: Proposal audit trail (EventConsumerModule + ServiceProviderModule)
	// - broadcast: Event consumer (EventConsumerModule for WebSocket fan-out)
	// - api: Driving adapter (Fiber HTTP/WebSocket server, depends on the rest)
	app.Register(negotiationModule)
	app.Register(sessionModule)
	app.Register(ledgerModule)
	app.Register(broadcastModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
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

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Negotiation events fan out to all connected clients")
	log.Println("  - Resolved proposals are kept in the SQLite ledger")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health               - Health check")
	log.Println("  POST   /api/v1/session/join  - Claim a participant name, returns a token")
	log.Println("  GET    /api/v1/snapshot      - Current rooms, prices and proposals")
	log.Println("  GET    /api/v1/history       - Resolved proposal ledger")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Connect with: ws://localhost:3000/ws?token=<token from join>")
	log.Println("  Command types: offer, accept, decline, satisfied, snapshot")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
