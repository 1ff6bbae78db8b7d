// Package bootstrap concentra a montagem comum aos binários api e worker.
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/config"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/infra/switchclient"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger: JSON em produção, console legível em dev.
func SetupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("bank", cfg.BankCode).Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// NewSwitchClient monta o cliente do switch com OAuth e JWS quando configurados.
// O Signer devolvido também verifica as assinaturas dos webhooks.
func NewSwitchClient(cfg *config.Config) (*switchclient.Client, *switchclient.Signer, error) {
	signer, err := switchclient.LoadSigner(cfg.Switch.SigningKeyPath, cfg.Switch.PeerPublicKey)
	if err != nil {
		return nil, nil, err
	}

	opts := switchclient.Options{
		BaseURL:  cfg.Switch.BaseURL,
		APIKey:   cfg.Switch.APIKey,
		BankCode: cfg.BankCode,
		Timeout:  cfg.Switch.Timeout,
		Signer:   signer,
	}
	if cfg.Switch.TokenURL != "" {
		opts.Tokens = switchclient.NewTokenCache(cfg.Switch.TokenURL, cfg.Switch.ClientID, cfg.Switch.ClientSecret, cfg.Switch.Scope)
	} else {
		log.Warn().Msg("SWITCH_TOKEN_URL não configurada, chamadas ao switch sem OAuth")
	}
	if !signer.CanSign() {
		log.Warn().Msg("Chave JWS não configurada, chamadas ao switch sem assinatura")
	}
	return switchclient.NewClient(opts), signer, nil
}

// DialRabbit abre a conexão nomeada (aparece assim no painel do RabbitMQ).
func DialRabbit(cfg *config.Config, connectionName string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(cfg.RabbitMQ.URL(), amqp.Config{
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return conn, nil
}
