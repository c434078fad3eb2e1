package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventhub/config"
	"eventhub/db"
	"eventhub/logging"
	"eventhub/middlewares"
	"eventhub/models"
	"eventhub/routes"
	"eventhub/seed"
	"eventhub/services"
	"eventhub/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(*cfg, os.Stdout)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	sqldb, err := db.Open(ctx, *cfg)
	if err != nil {
		return err
	}
	defer sqldb.Close()
	if err := db.Migrate(ctx, sqldb); err != nil {
		return err
	}

	// Mongo
	var audit models.AuditRepository = models.NopAuditRepository{}
	if cfg.AuditEnabled {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		mg, err := mongo.Connect(mctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return err
		}
		defer func() { _ = mg.Disconnect(context.Background()) }()
		if err := mg.Ping(mctx, nil); err != nil {
			return err
		}
		col := mg.Database(cfg.MongoDatabase).Collection("registration_audit")
		if err := models.EnsureAuditIndexes(mctx, col); err != nil {
			log.Warn("could not create audit indexes", "error", err)
		}
		audit = models.NewMongoAuditRepository(col)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	userRepo := models.NewSQLUserRepository(sqldb)
	eventRepo := models.NewSQLEventRepository(sqldb)
	regRepo := models.NewSQLRegistrationRepository(sqldb)

	regSvc := services.NewRegistrationService(eventRepo, userRepo, regRepo, audit, log)

	if cfg.Seed {
		if err := seed.New(userRepo, eventRepo, regSvc, log).Run(ctx); err != nil {
			return err
		}
	}

	server := gin.New()
	server.Use(gin.Recovery(), middlewares.RequestLogger(log))

	stopLimiters, err := routes.RegisterRoutes(server, routes.Deps{
		Users:         services.NewUserService(userRepo),
		Events:        services.NewEventService(eventRepo, regRepo),
		Registrations: regSvc,
		UserStore:     userRepo,
		Tokens:        utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Revocations:   utils.NewRevocations(rdb),
		Redis:         rdb,
		Invalidator:   utils.NewCacheInvalidator(rdb),
		Log:           log,
	}, routes.OptionsFromConfig(*cfg))
	if err != nil {
		return err
	}
	defer stopLimiters()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ServerAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
