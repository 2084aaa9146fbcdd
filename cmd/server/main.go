package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/poller"
	"github.com/dbdemo/showcase/internal/router"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/internal/session"
	ws "github.com/dbdemo/showcase/internal/websocket"
	"github.com/dbdemo/showcase/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client (optional - rate limiting and archiving need it)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
			rc.Close()
		} else {
			redisClient = rc
			defer redisClient.Close()
		}
	}

	sessions, err := session.NewStore(&cfg.Session, redisClient)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}

	jobClient := client.NewJobClient(&cfg.Remote)

	// Initialize object storage (optional - share falls back to the queue's URL)
	var storage client.StorageClient
	if cfg.Storage.Enabled() {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		switch {
		case err != nil:
			log.Printf("Warning: storage client not initialized: %v", err)
		case !s3Client.IsConfigured():
			log.Println("Warning: storage client has no bucket, archiving disabled")
		default:
			storage = s3Client
		}
	} else {
		log.Println("Info: object storage not configured, archiving disabled")
	}

	var asynqClient *asynq.Client
	if redisClient != nil && storage != nil {
		asynqClient = asynq.NewClient(redisOpt(&cfg.Redis))
		defer asynqClient.Close()
	}

	// Initialize services
	archiveService := service.NewArchiveService(redisClient, asynqClient, storage, jobClient, cfg.Storage.PresignExpiry)
	watcher := poller.New(jobClient, poller.PolicyFromConfig(&cfg.Poll))
	generateService := service.NewGenerateService(jobClient, sessions)
	resultService := service.NewResultService(watcher, jobClient, jobClient, archiveService)

	hub := ws.NewHub(resultService.WatchJob)

	app := router.New(&router.Deps{
		Config:   cfg,
		Sessions: sessions,
		Redis:    redisClient,
		Generate: generateService,
		Result:   resultService,
		Hub:      hub,
		Services: router.Services{
			Remote:  jobClient.IsConfigured(),
			Redis:   redisClient != nil,
			Storage: storage != nil,
		},
		AccessLog: true,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Printf("Server starting on %s", addr)
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	// Start Asynq worker server
	if archiveService.Enabled() {
		srv := newWorkerServer(cfg)
		mux := worker.NewServeMux(worker.NewArchiveWorker(archiveService, hub))
		g.Go(func() error {
			if err := srv.Start(mux); err != nil {
				return err
			}
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func newWorkerServer(cfg *config.Config) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(
		redisOpt(&cfg.Redis),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				service.QueueArchive: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)
}
