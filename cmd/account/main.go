package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	myPostgres "github.com/clipstream/account-service/internal/adapters/db/postgres"
	myHTTP "github.com/clipstream/account-service/internal/adapters/transport/http"
	"github.com/clipstream/account-service/internal/adapters/transport/http/middleware"
	"github.com/clipstream/account-service/internal/account/jwt"
	"github.com/clipstream/account-service/internal/account/password"
	"github.com/clipstream/account-service/internal/account/service"
	"github.com/clipstream/account-service/internal/config"
	lg "github.com/clipstream/account-service/internal/infra/log"
	"github.com/clipstream/account-service/internal/media"
	"github.com/clipstream/account-service/internal/migrate"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	zapLog := lg.Must(os.Getenv("LOG_LEVEL"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	mediaStore, err := media.NewS3Store(context.Background(), cfg)
	if err != nil {
		zapLog.Fatal("failed to init media store", zap.Error(err))
	}

	validate := validator.New()

	userRepo := myPostgres.NewUserRepo(db)
	subRepo := myPostgres.NewSubscriptionRepo(db)
	tokens := jwt.NewTokenIssuer(cfg)
	hasher := password.New(cfg.PasswordPepper)
	svc := service.NewAccountService(userRepo, subRepo, tokens, hasher, mediaStore, cfg, validate)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zapLog))
	router.Use(middleware.RateLimitPerIP(50, 100, 10_000, time.Hour))

	corsConfig := cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"Authorization",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	handler := myHTTP.NewHandler(svc, zapLog, cfg)
	handler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router}
	rootCtx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		var err error
		if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	zapLog.Info("account service started", zap.String("addr", cfg.HTTPAddress))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("shutdown signal received")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}
