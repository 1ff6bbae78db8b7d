package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/bootstrap"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/config"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/http/handler"
	internalMiddleware "github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/http/middleware"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/ledger"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/postgres"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/rabbitmq"
	redisInfra "github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/redis"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/scheduler"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/message"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// O erro é ignorado de propósito, pois em Produção (Docker/K8s)
	// não usamos arquivo .env, usamos variáveis reais do sistema.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuração inválida")
	}
	bootstrap.SetupLogger(cfg)
	if envErr != nil {
		log.Warn().Msg("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPool(ctx, cfg.Database.URL(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Não foi possível conectar ao banco de dados")
	}
	defer dbPool.Close()
	if err := postgres.RunMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Falha ao aplicar migrações")
	}
	log.Info().Msg("✅ Conectado ao PostgreSQL com sucesso!")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Não foi possível conectar ao Redis (cache de idempotência em fail-open)")
	} else {
		log.Info().Msg("✅ Conectado ao Redis!")
	}

	var eventPublisher gateway.EventPublisher
	rabbitConn, err := bootstrap.DialRabbit(cfg, "LedgerAPI_Publisher")
	if err != nil {
		log.Warn().Err(err).Msg("Falha ao conectar no RabbitMQ (Eventos não serão enviados)")
	} else {
		defer rabbitConn.Close()
		ch, err := rabbitConn.Channel()
		if err != nil {
			log.Fatal().Err(err).Msg("Falha ao abrir canal RabbitMQ")
		}
		defer ch.Close()
		if err := rabbitmq.DeclareSettlementExchange(ch); err != nil {
			log.Fatal().Err(err).Msg("Falha ao declarar Exchange")
		}
		eventPublisher = rabbitmq.NewRabbitMQPublisher(ch)
		log.Info().Msg("✅ Conectado ao RabbitMQ!")
	}

	switchClient, signer, err := bootstrap.NewSwitchClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Falha ao configurar cliente do switch")
	}
	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout)

	// Infraestrutura
	idempotencyRepo := redisInfra.NewIdempotencyRepository(redisClient)
	transactionRepository := postgres.NewTransactionRepository(dbPool)
	uow := postgres.NewUow(dbPool)

	// Use cases
	reconciler := usecase.NewReconcile(transactionRepository, uow, ledgerClient, switchClient, eventPublisher, usecase.ReconcilePolicy{
		Expiration: cfg.Reconcile.Expiration,
		Grace:      cfg.Reconcile.Grace,
	})
	outbound := usecase.NewOutboundTransfer(transactionRepository, uow, ledgerClient, switchClient, eventPublisher, cfg.BankCode, usecase.PollingPolicy{
		Interval:    cfg.Saga.PollInterval,
		MaxAttempts: cfg.Saga.PollMaxAttempts,
	})
	createTransaction := usecase.NewCreateTransaction(transactionRepository, uow, ledgerClient, eventPublisher, outbound)
	findTransaction := usecase.NewFindTransaction(transactionRepository, reconciler)
	requestReversal := usecase.NewRequestReversal(transactionRepository, uow, ledgerClient, switchClient, eventPublisher, reconciler, cfg.BankCode)
	inboundTransfer := usecase.NewInboundTransfer(transactionRepository, uow, ledgerClient, eventPublisher)
	inboundReturn := usecase.NewInboundReturn(transactionRepository, uow, ledgerClient, eventPublisher, cfg.BankCode)
	validateAccount := usecase.NewValidateAccount(ledgerClient, switchClient, cfg.BankCode)
	directory := usecase.NewDirectory(switchClient)

	// Handlers
	transactionHandler := handler.NewTransactionHandler(createTransaction, findTransaction, requestReversal, validateAccount, directory)
	webhookHandler := handler.NewWebhookHandler(message.NewClassifier(), inboundTransfer, inboundReturn, validateAccount, reconciler)
	bankHandler := handler.NewBankHandler(directory)

	metrics.Init()
	router := newRouter(cfg, routes{
		transactions: transactionHandler,
		webhook:      webhookHandler,
		banks:        bankHandler,
		idempotency:  internalMiddleware.Idempotency(idempotencyRepo, 24*time.Hour),
		rateLimit:    internalMiddleware.NewRateLimiter(cfg.Server.WebhookRPS, cfg.Server.WebhookBurst).Handler,
		signature:    internalMiddleware.VerifySignature(signer, cfg.Switch.StrictJWS),
	})

	if cfg.Reconcile.Enabled {
		sweeper := scheduler.NewSweepScheduler(reconciler, scheduler.Config{
			Interval:  cfg.Reconcile.Interval,
			BatchSize: cfg.Reconcile.BatchSize,
		})
		sweeper.Start()
		defer sweeper.Stop()
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("bank", cfg.BankCode).Msgf("🚀 Servidor rodando na porta %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Falha ao iniciar servidor HTTP")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Sinal recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Falha no shutdown do servidor HTTP")
	}
}
