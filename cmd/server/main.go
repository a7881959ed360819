package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	config "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/antiban"
	"github.com/mediaflux/hub/internal/api/handlers"
	"github.com/mediaflux/hub/internal/api/middleware"
	"github.com/mediaflux/hub/internal/queue"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/scheduler"
	"github.com/mediaflux/hub/internal/service"
)

// Worker pool size. Kept small on purpose: concurrent publishes across many
// accounts through shared egress is exactly the traffic shape that draws
// platform attention.
const publishConcurrency = 3

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewAccountRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	proxyRepo := repository.NewProxyRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)
	systemLogRepo := repository.NewSystemLogRepository(db)

	storageService := service.NewStorageService(*cfg)
	proxyService := service.NewProxyService(*cfg, proxyRepo, accountRepo, rng)
	contentService := service.NewContentService(*cfg, folderRepo, taskRepo, storageService, rng, nil)
	instagramService := service.NewInstagramService(*cfg, accountRepo, proxyService, rng)

	policy := antiban.NewPolicy(time.Duration(cfg.MinDelayBetweenPosts)*time.Second, rng, time.Now)

	sched := scheduler.NewScheduler(*cfg, accountRepo, taskRepo, folderRepo, statsRepo,
		systemLogRepo, contentService, proxyService, instagramService, policy, client, rng)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg)
	app.Post("/login", auth.Login)
	app.Post("/logout", auth.Logout)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	account := handlers.NewAccountHandler(*cfg, accountRepo, proxyService, rng)
	api.Post("/accounts", account.Create)
	api.Get("/accounts", account.List)
	api.Put("/accounts/:id/status", account.UpdateStatus)
	api.Delete("/accounts/:id", account.Delete)

	task := handlers.NewTaskHandler(taskRepo)
	api.Get("/tasks", task.List)
	api.Post("/tasks/:id/retry", task.Retry)
	api.Delete("/tasks/:id", task.Delete)

	proxy := handlers.NewProxyHandler(proxyRepo, proxyService)
	api.Get("/proxies", proxy.List)
	api.Post("/proxies/sync", proxy.Sync)
	api.Post("/proxies/test", proxy.Test)
	api.Get("/proxies/stats", proxy.Stats)

	dashboard := handlers.NewDashboardHandler(sched, contentService, proxyService, systemLogRepo)
	api.Get("/dashboard/stats", dashboard.Stats)
	api.Get("/dashboard/logs", dashboard.Logs)
	api.Post("/scheduler/start", dashboard.StartScheduler)
	api.Post("/scheduler/stop", dashboard.StopScheduler)
	api.Post("/scheduler/generate", dashboard.GenerateNow)
	api.Post("/content/rescan", dashboard.Rescan)

	// Seed the content inventory and proxy pool before the first drain.
	if _, err := contentService.ScanFolders(context.Background()); err != nil {
		log.Printf("Warning: initial content scan failed: %v", err)
	}
	if _, _, err := proxyService.SyncFromFile(context.Background()); err != nil {
		log.Printf("Warning: initial proxy sync failed: %v", err)
	}

	queueW := queue.NewQueue(sched)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: publishConcurrency,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublish, queueW.HandlePublishTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	if err := sched.Start(); err != nil {
		log.Fatalf("Could not start scheduler: %v", err)
	}

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db, sched)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, sched *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	sched.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
