package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency-crm-api/internal/config"
	"agency-crm-api/internal/handler"
	"agency-crm-api/internal/middleware"
	"agency-crm-api/internal/model"
	"agency-crm-api/internal/repository"
	"agency-crm-api/internal/repository/mongostore"
	"agency-crm-api/internal/service"
	"agency-crm-api/internal/ws"
	"agency-crm-api/pkg/database"
	"agency-crm-api/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(appLogger)

	// 2. Setup Database
	db, err := database.ConnectPostgres(database.PostgresOptions{
		DSN:             cfg.DSN(),
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.SuggestedClient{}, &model.CreditAccount{}, &model.CreditHistory{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// 3. Credit ledger backend
	creditRepo, mongoClient := creditStore(cfg, db)
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	}

	// 4. Seed the first administrator
	userRepo := repository.NewUserRepo(db)
	seedAdmin(userRepo, cfg)

	// 5. Setup WebSocket Hub
	wsHub := ws.NewHub(appLogger)
	go wsHub.Run()

	// 6. Dependency Injection (Wiring Layers)
	clientRepo := repository.NewSuggestedClientRepo(db)
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.TTLHours)*time.Hour)

	authService := service.NewAuthService(userRepo, tokens)
	userService := service.NewUserService(userRepo)
	creditService := service.NewCreditService(userRepo, clientRepo, creditRepo, wsHub, appLogger)
	clientService := service.NewSuggestedClientService(clientRepo)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handler.ErrorHandler(appLogger),
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	handler.RegisterRoutes(app, handler.Handlers{
		Auth:            handler.NewAuthHandler(authService),
		User:            handler.NewUserHandler(userService),
		Credit:          handler.NewCreditHandler(creditService),
		SuggestedClient: handler.NewSuggestedClientHandler(clientService),
		Role:            handler.NewRoleHandler(),
	}, authService, middleware.Permissions{Logger: appLogger}, wsHub)

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func creditStore(cfg *config.Config, db *gorm.DB) (repository.CreditRepository, *mongo.Client) {
	if cfg.CreditStore != config.CreditStoreMongo {
		return repository.NewCreditRepo(db), nil
	}
	client, err := database.ConnectMongo(cfg.Mongo.URI, time.Duration(cfg.Mongo.ConnectTimeout)*time.Second)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	log.Println("Credit ledger stored in MongoDB")
	return mongostore.NewCreditStore(client.Database(cfg.Mongo.Database)), client
}

// seedAdmin creates the SUPER_ADMIN account when SEED_ADMIN_PASSWORD is set and the email is free.
func seedAdmin(userRepo repository.UserRepository, cfg *config.Config) {
	if cfg.Seed.AdminPassword == "" {
		return
	}
	ctx := context.Background()
	_, err := userRepo.FindByEmail(ctx, cfg.Seed.AdminEmail)
	if err == nil {
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Warning: Failed to look up admin user: %v", err)
		return
	}

	admin := &model.User{
		Email:    cfg.Seed.AdminEmail,
		Username: "admin",
		FullName: "Super Administrateur",
		Role:     model.RoleSuperAdmin,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(cfg.Seed.AdminPassword); err != nil {
		log.Printf("Warning: Failed to hash admin password: %v", err)
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
		return
	}
	log.Printf("Admin user created: %s (SUPER_ADMIN)", admin.Email)
}
