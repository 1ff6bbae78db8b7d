package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/bootstrap"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/config"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/ledger"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/mongodb"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/postgres"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/rabbitmq"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/message"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// O worker consome duas filas: as instruções que o switch entrega para este banco
// e os eventos de liquidação que vão para a auditoria no Mongo.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuração inválida")
	}
	bootstrap.SetupLogger(cfg)
	if envErr != nil {
		log.Warn().Msg("Arquivo .env não encontrado, usando variáveis de ambiente")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MongoDB (auditoria)
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao criar client MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("Erro ao desconectar Mongo")
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("MongoDB não está respondendo")
	}
	cancel()
	auditRepo := mongodb.NewAuditRepository(mongoClient, cfg.Mongo.Database)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Falha ao criar índices da auditoria")
	}
	log.Info().Msg("✅ Conectado ao MongoDB!")

	// PostgreSQL (instruções recebidas creditam contas locais)
	dbPool, err := postgres.NewPool(ctx, cfg.Database.URL(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Não foi possível conectar ao banco de dados")
	}
	defer dbPool.Close()
	if err := postgres.RunMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Falha ao aplicar migrações")
	}
	log.Info().Msg("✅ Conectado ao PostgreSQL com sucesso!")

	switchClient, _, err := bootstrap.NewSwitchClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Falha ao configurar cliente do switch")
	}
	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout)

	conn, err := bootstrap.DialRabbit(cfg, "SettlementWorker_Consumer")
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao conectar no RabbitMQ")
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("Erro ao fechar conexão RabbitMQ")
		}
	}()

	// Um canal por consumidor: Qos e publish de retry não se misturam
	instructionCh := openChannel(conn)
	defer instructionCh.Close()
	auditCh := openChannel(conn)
	defer auditCh.Close()

	if err := rabbitmq.DeclareAuditQueue(auditCh); err != nil {
		log.Fatal().Err(err).Msg("Erro ao declarar fila de auditoria")
	}
	if err := rabbitmq.DeclareWorkQueue(instructionCh, cfg.RabbitMQ.Queue); err != nil {
		log.Fatal().Err(err).Msg("Erro ao declarar fila de instruções")
	}

	// Eventos do próprio worker também vão para a auditoria
	publisherCh := openChannel(conn)
	defer publisherCh.Close()
	eventPublisher := rabbitmq.NewRabbitMQPublisher(publisherCh)

	transactionRepository := postgres.NewTransactionRepository(dbPool)
	uow := postgres.NewUow(dbPool)
	inboundTransfer := usecase.NewInboundTransfer(transactionRepository, uow, ledgerClient, eventPublisher)
	inboundReturn := usecase.NewInboundReturn(transactionRepository, uow, ledgerClient, eventPublisher, cfg.BankCode)
	transferInstruction := usecase.NewTransferInstruction(inboundTransfer, switchClient, cfg.BankCode)

	policy := rabbitmq.RetryPolicy{
		MaxRetries: cfg.RabbitMQ.MaxRetries,
		Base:       cfg.RabbitMQ.RetryBase,
		Max:        cfg.RabbitMQ.RetryMax,
	}
	consumers := []*rabbitmq.Consumer{
		rabbitmq.NewConsumer(instructionCh, cfg.RabbitMQ.Queue, "instruction_worker", policy,
			rabbitmq.NewInstructionHandler(message.NewClassifier(), transferInstruction, inboundReturn)),
		rabbitmq.NewConsumer(auditCh, rabbitmq.AuditQueue, "audit_worker", policy,
			rabbitmq.NewAuditHandler(auditRepo)),
	}

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	for _, consumer := range consumers {
		wg.Add(1)
		go func(c *rabbitmq.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Msg("🔴 Consumidor parou")
				failed.Store(true)
				cancelRun()
			}
		}(consumer)
	}

	log.Info().Str("queue", cfg.RabbitMQ.Queue).Str("bank", cfg.BankCode).Msg(" [*] Worker iniciado")
	<-ctx.Done()
	log.Info().Msg("Shutting down worker...")
	wg.Wait()

	// Canal caiu: sai com erro para o orquestrador reiniciar o processo
	if failed.Load() {
		os.Exit(1)
	}
}

func openChannel(conn *amqp.Connection) *amqp.Channel {
	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao abrir canal")
	}
	return ch
}
