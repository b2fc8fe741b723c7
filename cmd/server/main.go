package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/treasurehunt/backend/docs"
	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/config"
	"github.com/treasurehunt/backend/internal/database"
	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/handlers"
	"github.com/treasurehunt/backend/internal/intent"
	"github.com/treasurehunt/backend/internal/logging"
	"github.com/treasurehunt/backend/internal/middleware"
	"github.com/treasurehunt/backend/internal/realtime"
	"github.com/treasurehunt/backend/internal/services"
	"github.com/treasurehunt/backend/internal/voice"
)

// @title Treasure Hunt Economy API
// @version 1.0
// @description Player accounts, gold bars and payments for the treasure hunt game
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.JWT.SecretKey == "" {
		return errors.New("JWT_SECRET_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	st, db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	redisClient := database.InitRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	users := services.NewUserService(st, logger)
	accounts := services.NewAccountService(st, logger)
	history := services.NewHistoryService(st)
	hub := realtime.NewHub(accounts, users, logger)

	publishers := events.Multi{hub}
	if redisClient != nil {
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.Redis.EventsKey, ""))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafka.Close()
		publishers = append(publishers, kafka)
		logger.Info("kafka event streaming enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	ledger := services.NewLedgerService(st, publishers, audit.NewLogger(logger), logger)
	paymentRequests := services.NewPaymentRequestService(redisClient, users, ledger, cfg.PaymentRequest.TTL, logger)

	parser, err := intentParser(ctx, cfg.Voice, logger)
	if err != nil {
		return err
	}
	commands := services.NewVoiceCommandService(parser, cfg.Voice.ConfidenceThreshold, users, accounts, ledger, history, logger)

	transcriber := voice.NewTranscriber(ctx, cfg.Voice.LanguageCode, logger)
	defer transcriber.Close()

	router := handlers.NewRouter(handlers.Dependencies{
		Users:           users,
		Accounts:        accounts,
		Ledger:          ledger,
		History:         history,
		PaymentRequests: paymentRequests,
		Transcriber:     transcriber,
		Commands:        commands,
		Auth:            middleware.NewAuth(cfg.JWT.SecretKey, cfg.JWT.Expiry()),
		Realtime:        realtime.NewServer(hub, users, accounts, ledger, cfg.Server.AllowedOrigins, logger),
		Health:          db.PingContext,
		StaticDir:       cfg.Server.StaticDir,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RequestTimeout:  cfg.Server.RequestTimeout,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// intentParser prefers Gemini when an API key is configured and keeps the
// keyword rules as the fallback.
func intentParser(ctx context.Context, cfg config.VoiceConfig, logger *zap.Logger) (intent.Parser, error) {
	keywords := intent.NewKeywordParser()
	if cfg.GeminiAPIKey == "" {
		logger.Info("no Gemini API key, using keyword intent parsing")
		return keywords, nil
	}

	client, err := intent.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	gemini := intent.NewGeminiParser(client.Models, cfg.GeminiModel)
	return intent.NewFallbackParser(gemini, keywords, logger), nil
}
