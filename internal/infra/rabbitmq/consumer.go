package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const retryCountHeader = "x-retry-count"

var ErrChannelClosed = errors.New("rabbitmq delivery channel closed")

// Handler processa o corpo de uma mensagem.
// nil: Ack. Erro de negócio (domain.IsBusinessError): descarta sem requeue.
// Qualquer outro erro: vai para a fila de retry com back-off.
type Handler func(ctx context.Context, body []byte) error

type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// Delay devolve base·2^attempt limitado a Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

type Consumer struct {
	channel    channelPublisher
	queue      string
	handler    Handler
	policy     RetryPolicy
	timeout    time.Duration
	deliveries func() (<-chan amqp.Delivery, error)
}

// NewConsumer prepara o consumo manual (prefetch 1) de uma fila já declarada com DeclareWorkQueue.
func NewConsumer(ch *amqp.Channel, queue, tag string, policy RetryPolicy, handler Handler) *Consumer {
	return &Consumer{
		channel: ch,
		queue:   queue,
		handler: handler,
		policy:  policy,
		timeout: 30 * time.Second,
		deliveries: func() (<-chan amqp.Delivery, error) {
			// Prefetch 1: o broker só entrega a próxima depois do Ack
			if err := ch.Qos(1, 0, false); err != nil {
				return nil, fmt.Errorf("failed to set qos: %w", err)
			}
			return ch.Consume(queue, tag, false, false, false, false, nil)
		},
	}
}

// Run consome até o contexto acabar ou o canal fechar.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.deliveries()
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}
	log.Info().Str("queue", c.queue).Msg("Consumidor iniciado, aguardando mensagens")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%w: %s", ErrChannelClosed, c.queue)
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	handlerCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.handler(handlerCtx, d.Body)
	cancel()

	logger := log.With().Str("queue", c.queue).Str("message_id", d.MessageId).Logger()

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error().Err(ackErr).Msg("Erro ao enviar Ack")
		}
	case domain.IsBusinessError(err):
		logger.Warn().Err(err).Msg("Mensagem rejeitada por regra de negócio, descartando")
		metrics.QueueRetries.WithLabelValues(c.queue, "discard").Inc()
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Error().Err(nackErr).Msg("Erro ao enviar Nack")
		}
	default:
		c.retry(ctx, d, err)
	}
}

// retry republica na fila .retry com TTL crescente; depois de MaxRetries a mensagem sai da fila.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, cause error) {
	attempt := retryCount(d.Headers)
	logger := log.With().Str("queue", c.queue).Int("attempt", attempt+1).Logger()

	if attempt >= c.policy.MaxRetries {
		logger.Error().Err(cause).Msg("Tentativas esgotadas, mensagem enviada para dead-letter")
		metrics.QueueRetries.WithLabelValues(c.queue, "dead_letter").Inc()
		if err := d.Nack(false, false); err != nil {
			logger.Error().Err(err).Msg("Erro ao enviar Nack")
		}
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempt + 1)
	delay := c.policy.Delay(attempt)

	err := c.channel.PublishWithContext(ctx, "", RetryQueueName(c.queue), false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		MessageId:    d.MessageId,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
	})
	if err != nil {
		// Sem fila de retry: devolve para a própria fila
		logger.Error().Err(err).Msg("Falha ao agendar retry, devolvendo para a fila")
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error().Err(nackErr).Msg("Erro ao enviar Nack")
		}
		return
	}

	logger.Warn().Err(cause).Dur("delay", delay).Msg("Falha técnica, mensagem agendada para nova tentativa")
	metrics.QueueRetries.WithLabelValues(c.queue, "retry").Inc()
	if ackErr := d.Ack(false); ackErr != nil {
		logger.Error().Err(ackErr).Msg("Erro ao enviar Ack")
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
