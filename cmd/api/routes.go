package main

import (
	"net/http"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/config"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/http/handler"
	internalMiddleware "github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/http/middleware"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type routes struct {
	transactions *handler.TransactionHandler
	webhook      *handler.WebhookHandler
	banks        *handler.BankHandler
	idempotency  func(http.Handler) http.Handler
	rateLimit    func(http.Handler) http.Handler
	signature    func(http.Handler) http.Handler
}

func newRouter(cfg *config.Config, rt routes) http.Handler {
	router := chi.NewRouter()

	// Middlewares básicos
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer) // Evita crash se der panic
	router.Use(internalMiddleware.HTTPMetrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", internalMiddleware.SignatureHeader},
		ExposedHeaders:   []string{internalMiddleware.IdempotencyHitHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rota de Health Check (para o Docker saber se estamos vivos)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Falha ao escrever resposta de health check")
		}
	})
	router.Handle("/metrics", metrics.Handler())

	// A saga espera o switch (polling), então o timeout cobre o orçamento inteiro
	sagaBudget := cfg.Saga.PollInterval*time.Duration(cfg.Saga.PollMaxAttempts) + 2*cfg.Switch.Timeout
	router.Route("/api/transactions", func(r chi.Router) {
		r.Use(middleware.Timeout(sagaBudget + 5*time.Second))
		r.With(rt.idempotency).Post("/", rt.transactions.Create)
		r.Get("/account/{accountID}", rt.transactions.ListByAccount)
		r.Get("/search/{reference}", rt.transactions.Search)
		r.With(rt.idempotency).Post("/reversal", rt.transactions.Reversal)
		r.Get("/return-reasons", rt.transactions.ReturnReasons)
		r.Post("/validate-external", rt.transactions.ValidateExternal)
	})

	router.Route("/api/banks", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", rt.banks.List)
		r.Get("/health", rt.banks.Health)
	})

	// Superfície pública chamada pelo switch
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(rt.rateLimit)
		r.Use(rt.signature)
		r.Post("/api/v2/switch/transfers", rt.webhook.Receive)
		r.Post("/api/core/transfers/reception", rt.webhook.Receive)
		r.Post("/api/incoming/return", rt.webhook.ReceiveReturn)
	})
	router.With(middleware.Timeout(30*time.Second)).
		Get("/api/core/transfers/reception/status/{instructionID}", rt.webhook.Status)

	return router
}
