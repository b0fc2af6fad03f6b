package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/roamly/authkit"
	"github.com/roamly/authkit/stores"
	gormstores "github.com/roamly/authkit/stores/gorm"
)

type serverConfig struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	BaseURL   string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	SecretKey string `env:"AUTHKIT_SECRET_KEY,required"`

	DatabaseURL string `env:"DATABASE_URL"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Authkit"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var store authkit.UserStore
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			TranslateError: true,
		})
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		if err := gormstores.AutoMigrate(db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = gormstores.NewUserStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory user store")
		store = stores.NewMemUserStore()
	}

	var emailSender authkit.EmailSender = &authkit.ConsoleEmailSender{}
	if cfg.SMTPHost != "" {
		sender, err := authkit.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	auth := authkit.New(authkit.Config{
		SecretKey:          cfg.SecretKey,
		BaseURL:            cfg.BaseURL,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GoogleRedirectURL:  cfg.GoogleRedirectURL,
	}, store, emailSender)

	mux := http.NewServeMux()
	mux.Handle("/", auth.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
