package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/auth"
	"github.com/nexusterm/server/internal/config"
	"github.com/nexusterm/server/internal/container"
	"github.com/nexusterm/server/internal/database"
	"github.com/nexusterm/server/internal/relay"
	"github.com/nexusterm/server/internal/session"
	"github.com/nexusterm/server/internal/share"
	"github.com/nexusterm/server/internal/store"
	"github.com/nexusterm/server/internal/user"
	"github.com/nexusterm/server/internal/worker"
)

func main() {
	cfg := config.Load()

	// Database
	db := database.Connect(cfg.DatabaseURL)
	database.AutoMigrate(db,
		&user.User{},
		&auth.RefreshToken{},
		&worker.Worker{},
		&share.Grant{},
		&session.Record{},
		&container.Node{},
		&container.Agent{},
	)

	// Repositories
	userRepo := user.NewRepository(db)
	workerRepo := worker.NewRepository(db)
	shareRepo := share.NewRepository(db)
	sessionRepo := session.NewRepository(db)

	// Access gate and relay
	gate := share.NewGate(workerRepo, shareRepo)
	relayStore := store.New(workerRepo, shareRepo, sessionRepo, gate)
	hub := relay.NewHub(relayStore, cfg.OutputBufferSize)

	// Agent provisioning
	nodePool := container.NewNodePool(db)
	agentMgr := container.NewAgentManager(cfg.AgentImage, cfg.RelayURL)

	// Workers that die without closing their socket stop heartbeating; sweep
	// them offline so lists don't show ghosts. Expired refresh tokens ride
	// along on the same tick.
	go func() {
		interval := time.Duration(cfg.HeartbeatInterval) * time.Second
		for range time.Tick(interval) {
			n, err := workerRepo.MarkStaleOffline(time.Now().Add(-2 * interval))
			if err != nil {
				log.Printf("stale worker sweep: %v", err)
				continue
			}
			if n > 0 {
				hub.BroadcastLists()
			}
			if err := auth.PruneExpiredRefreshTokens(db); err != nil {
				log.Printf("refresh token prune: %v", err)
			}
		}
	}()

	// Handlers
	authHandler := auth.NewHandler(userRepo, db, cfg.JWTSecret)
	userHandler := user.NewHandler(userRepo)
	workerHandler := worker.NewHandler(workerRepo, relayStore, hub, func(workerID uuid.UUID) {
		if err := shareRepo.DeleteByWorkerID(workerID); err != nil {
			log.Printf("cleanup grants for worker %s: %v", workerID, err)
		}
		if err := sessionRepo.DeleteByWorkerID(workerID); err != nil {
			log.Printf("cleanup session names for worker %s: %v", workerID, err)
		}
		var agent container.Agent
		if err := db.Where("worker_id = ?", workerID).First(&agent).Error; err != nil {
			return
		}
		if node, err := nodePool.FindByID(agent.NodeID); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := agentMgr.StopAgent(ctx, node, agent.ContainerID); err != nil {
				log.Printf("stop agent for worker %s: %v", workerID, err)
			}
			cancel()
			nodePool.DecrementAgents(node.ID)
		}
		db.Delete(&agent)
	})
	shareHandler := share.NewHandler(shareRepo, workerRepo, userRepo, gate, hub)
	relayHandler := relay.NewHandler(hub, relayStore, cfg.JWTSecret)
	containerHandler := container.NewHandler(db, nodePool, agentMgr, workerRepo)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Public routes
	api := app.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", authHandler.Logout)

	// Google OAuth (only if configured)
	if cfg.GoogleClientID != "" {
		googleHandler := auth.NewGoogleHandler(
			cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirect,
			userRepo, db, cfg.JWTSecret,
		)
		authGroup.Get("/google", googleHandler.RedirectToGoogle)
		authGroup.Get("/google/callback", googleHandler.Callback)
		authGroup.Get("/google/complete", googleHandler.Complete)
	}

	// Relay websockets (registered before the JWT header middleware; both
	// endpoints authenticate from query params in their upgrade middleware)
	api.Use("/relay/client", relayHandler.ClientUpgrade())
	api.Get("/relay/client", relayHandler.ClientWS())
	api.Use("/relay/worker", relayHandler.WorkerUpgrade())
	api.Get("/relay/worker", relayHandler.WorkerWS())

	// Protected routes
	protected := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	protected.Get("/me", userHandler.GetMe)
	protected.Patch("/me", userHandler.UpdateMe)

	workers := protected.Group("/workers")
	workers.Get("/", workerHandler.List)
	workers.Post("/", workerHandler.Create)
	workers.Patch("/:id", workerHandler.Rename)
	workers.Delete("/:id", workerHandler.Delete)
	workers.Get("/:id/shares", shareHandler.List)
	workers.Post("/:id/shares", shareHandler.Grant)
	workers.Delete("/:id/shares/:userId", shareHandler.Revoke)
	workers.Post("/:id/agent", containerHandler.LaunchAgent)
	workers.Delete("/:id/agent", containerHandler.StopAgent)

	nodes := protected.Group("/nodes")
	nodes.Get("/", containerHandler.ListNodes)
	nodes.Post("/", containerHandler.RegisterNode)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	log.Printf("Server starting on :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
