package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eventreg/admin"
	"eventreg/config"
	"eventreg/db"
	"eventreg/middlewares"
	"eventreg/models"
	"eventreg/notify"
	"eventreg/registration"
	"eventreg/routes"
	"eventreg/telemetry"
	"eventreg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	loc, _ := cfg.Location()

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		config.Exitf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, "eventreg", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("tracer", zap.Error(err))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// Postgres
	sqldb, err := db.Open(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer sqldb.Close()

	// Mongo
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mg, err := mongo.Connect(mctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo connect", zap.Error(err))
	}
	if err := mg.Ping(mctx, nil); err != nil {
		log.Fatal("mongo ping", zap.Error(err))
	}
	defer func() { _ = mg.Disconnect(context.Background()) }()
	settingsCol := mg.Database(cfg.MongoDB).Collection("settings")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, cache and quota disabled until it recovers", zap.Error(err))
	}
	defer rdb.Close()

	users := models.NewSQLUserRepository(sqldb)
	events := models.NewSQLEventRepository(sqldb)
	regs := models.NewSQLRegistrationRepository(sqldb)
	settings := models.NewMongoSettingsRepository(settingsCol)

	if err := bootstrapAdmin(ctx, users, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword); err != nil {
		log.Fatal("bootstrap admin", zap.Error(err))
	}

	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.SMTP.Host != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	dispatcher := notify.NewDispatcher(sender, log.Named("notify"), loc)

	svc := registration.NewService(events, regs, settings, dispatcher, loc,
		registration.WithLogger(log.Named("registration")))
	facade := admin.NewFacade(events, regs, settings, utils.NewCacheInvalidator(rdb), log.Named("admin"), loc)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := gin.New()
	server.Use(gin.Recovery(), middlewares.RequestLogger(log.Named("http")))

	limiters := routes.RegisterRoutes(server, routes.Deps{
		Users:        users,
		Registration: svc,
		Admin:        facade,
		Tokens:       utils.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Redis:        rdb,
		CacheTTL:     cfg.CacheTTL,
		SubmitQuota:  cfg.SubmitQuota,
		Location:     loc,
		Log:          log,
	})
	defer func() {
		for _, l := range limiters {
			l.Stop()
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// bootstrapAdmin creates the first admin account when configured and missing.
func bootstrapAdmin(ctx context.Context, users models.UserRepository, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return users.Create(ctx, &models.User{Email: email, Password: password})
}
