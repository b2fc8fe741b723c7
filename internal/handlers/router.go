package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/treasurehunt/backend/docs"
	"github.com/treasurehunt/backend/internal/middleware"
	"github.com/treasurehunt/backend/internal/services"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Users           *services.UserService
	Accounts        *services.AccountService
	Ledger          *services.LedgerService
	History         *services.HistoryService
	PaymentRequests *services.PaymentRequestService
	Transcriber     Transcriber
	Commands        CommandExecutor
	Auth            *middleware.Auth
	Realtime        http.Handler
	Health          func(ctx context.Context) error
	StaticDir       string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	Logger          *zap.Logger
}

func NewRouter(deps Dependencies) http.Handler {
	sessions := NewSessionHandler(deps.Users, deps.Ledger, deps.Auth, deps.Logger)
	users := NewUserHandler(deps.Users, deps.Accounts, deps.History)
	accounts := NewAccountHandler(deps.Accounts, deps.History)
	transactions := NewTransactionHandler(deps.Accounts, deps.Ledger)
	paymentRequests := NewPaymentRequestHandler(deps.PaymentRequests, deps.Accounts)
	voiceHandler := NewVoiceHandler(deps.Transcriber, deps.Commands, deps.Logger)

	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				deps.Logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// The socket outlives any request timeout.
	if deps.Realtime != nil {
		r.Handle("/ws", deps.Realtime)
	}

	r.Handle("/game/*", http.StripPrefix("/game", middleware.StaticFileServer(deps.StaticDir)))

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(deps.RequestTimeout))
		}

		r.Post("/session", sessions.StartSession)
		r.Get("/gold-rate", sessions.GoldRate)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Middleware)

			r.Get("/users", users.ListUsers)
			r.Post("/users", users.CreateUser)
			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/", users.GetUser)
				r.Put("/", users.RenameUser)
				r.Delete("/", users.DeleteUser)
				r.Get("/accounts", users.GetAccounts)
				r.Get("/accounts/{type}", users.GetAccountByType)
				r.Get("/summary", users.GetSummary)
				r.Get("/transactions", users.GetTransactions)
			})

			r.Get("/accounts/{id}", accounts.GetAccount)
			r.Get("/accounts/{id}/transactions", accounts.GetTransactions)

			r.Post("/transactions/transfer", transactions.Transfer)
			r.Post("/transactions/deposit", transactions.Deposit)
			r.Post("/transactions/withdraw", transactions.Withdraw)
			r.Post("/transactions/collect-gold", transactions.CollectGold)
			r.Post("/transactions/exchange-gold", transactions.ExchangeGold)
			r.Post("/transactions/send", transactions.SendMoney)

			r.Post("/payment-requests", paymentRequests.CreatePaymentRequest)
			r.Post("/payment-requests/redeem", paymentRequests.RedeemPaymentRequest)

			r.Post("/voice/transcribe", voiceHandler.Transcribe)
			r.Post("/voice/command", voiceHandler.Command)
		})
	})

	return r
}

// requestLogger writes one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", chimw.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
