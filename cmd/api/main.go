package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"gorm.io/gorm"

	"github.com/noah-isme/vibely-go-api/internal/config"
	"github.com/noah-isme/vibely-go-api/internal/database"
	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/handler"
	"github.com/noah-isme/vibely-go-api/internal/middleware"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
	fsrepo "github.com/noah-isme/vibely-go-api/internal/repository/firestore"
	"github.com/noah-isme/vibely-go-api/internal/router"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/pkg/ai"
	"github.com/noah-isme/vibely-go-api/pkg/auth"
	cloud "github.com/noah-isme/vibely-go-api/pkg/cloudinary"
)

type repositories struct {
	users      repository.UserRepository
	chats      repository.ChatRepository
	messages   repository.MessageRepository
	requests   repository.ChatRequestRepository
	companions repository.CompanionRepository
	ping       handler.HealthProbe
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var firebaseApp *firebase.App
	if cfg.DatabaseDriver == config.DriverFirestore || cfg.AuthProvider == config.AuthProviderFirebase {
		firebaseApp, err = database.ConnectFirebase(ctx, database.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsPath: cfg.FirebaseCredentialsPath,
		})
		if err != nil {
			log.Fatalf("failed to initialise firebase: %v", err)
		}
	}

	repos, closeRepos, err := openRepositories(ctx, cfg, firebaseApp)
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}
	defer closeRepos()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, realtime fan-out uses redis only")
		} else {
			defer natsConn.Drain()
		}
	}

	provider, registrar, issuer, err := buildAuth(ctx, cfg, firebaseApp)
	if err != nil {
		log.Fatalf("failed to configure identity provider: %v", err)
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		store, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = store
	} else {
		logger.Warn().Msg("cloudinary not configured, avatar uploads disabled")
	}

	var assistant ai.Assistant
	if cfg.AIEnabled() {
		openai, err := ai.NewOpenAIAssistant(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create ai assistant: %v", err)
		}
		assistant = openai
	}

	validate := dto.NewValidator()
	hub := realtime.NewHub(logger)
	bus := realtime.NewBus(hub, redisClient, cfg.RealtimeBase, natsConn, logger)
	bus.Start(ctx)
	clock := realtime.NewRedisClock(redisClient, logger)

	presenceService := service.NewPresenceService(redisClient, cfg.RealtimeBase, cfg.PresenceSessionTTL, clock, bus, logger)
	if err := presenceService.Start(ctx, cfg.PresenceSweepSpec); err != nil {
		log.Fatalf("failed to schedule presence sweep: %v", err)
	}

	messageCache := service.NewMessageCache(redisClient, cfg.RealtimeBase, logger)
	identityService := service.NewIdentityService(repos.users, presenceService, registrar, issuer, storage, validate, service.IdentityConfig{
		AvatarMaxSizeMB: cfg.AvatarMaxSizeMB,
	}, logger)
	directoryService := service.NewDirectoryService(repos.chats, repos.users, presenceService, messageCache, bus, clock, validate, logger)
	messageService := service.NewMessageService(repos.messages, repos.chats, repos.users, directoryService, messageCache, bus, clock, cfg.MessagePageSize, logger)
	receipts := service.NewReadReceiptReconciler(repos.messages, messageService, bus, logger)
	chatRequests := service.NewChatRequestService(repos.requests, repos.users, directoryService, bus, clock, logger)
	automations := service.NewAutomationService(repos.chats, repos.users, directoryService, assistant, bus, clock, validate, logger)
	companions := service.NewCompanionService(repos.companions, validate, clock, logger)
	realtimeService := service.NewRealtimeService(directoryService, messageService, receipts, presenceService, chatRequests, validate, service.RealtimeConfig{
		EventRate:         cfg.SessionEventRate,
		EventBurst:        cfg.SessionEventBurst,
		HeartbeatInterval: cfg.PresenceSessionTTL / 3,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:        handler.NewAuthHandler(identityService, presenceService, logger),
		UserHandler:        handler.NewUserHandler(identityService, presenceService, validate, logger),
		ChatHandler:        handler.NewChatHandler(directoryService, automations, logger),
		MessageHandler:     handler.NewMessageHandler(messageService, receipts, logger),
		ChatRequestHandler: handler.NewChatRequestHandler(chatRequests, validate, logger),
		RealtimeHandler:    handler.NewRealtimeHandler(realtimeService, logger),
		CompanionHandler:   handler.NewCompanionHandler(companions, logger),
		AuthMiddleware:     middleware.Authenticate(provider),
		HealthProbes: map[string]handler.HealthProbe{
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"database": repos.ping,
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func openRepositories(ctx context.Context, cfg config.Config, firebaseApp *firebase.App) (repositories, func(), error) {
	if cfg.DatabaseDriver == config.DriverFirestore {
		client, err := firebaseApp.Firestore(ctx)
		if err != nil {
			return repositories{}, nil, err
		}
		return repositories{
			users:      fsrepo.NewUserRepository(client),
			chats:      fsrepo.NewChatRepository(client),
			messages:   fsrepo.NewMessageRepository(client),
			requests:   fsrepo.NewChatRequestRepository(client),
			companions: fsrepo.NewCompanionRepository(client),
			ping: func(ctx context.Context) error {
				_, err := client.Collections(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		}, func() { _ = client.Close() }, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.DatabaseDriver == config.DriverSQLite {
		db, err = database.ConnectSQLite(cfg.DatabaseURL)
	} else {
		db, err = database.ConnectPostgres(cfg.DatabaseURL)
	}
	if err != nil {
		return repositories{}, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return repositories{}, nil, err
	}

	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repositories{
		users:      repository.NewUserRepository(db),
		chats:      repository.NewChatRepository(db),
		messages:   repository.NewMessageRepository(db),
		requests:   repository.NewChatRequestRepository(db),
		companions: repository.NewCompanionRepository(db),
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, closeDB, nil
}

func buildAuth(ctx context.Context, cfg config.Config, firebaseApp *firebase.App) (auth.Provider, auth.Registrar, auth.Issuer, error) {
	if cfg.AuthProvider == config.AuthProviderFirebase {
		provider, err := auth.NewFirebaseProvider(ctx, firebaseApp)
		if err != nil {
			return nil, nil, nil, err
		}
		// clients sign in with the Firebase SDK, so no session token is minted here
		return provider, provider, nil, nil
	}

	provider := auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTTTL)
	return provider, provider, provider, nil
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
