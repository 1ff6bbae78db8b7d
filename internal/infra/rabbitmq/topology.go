package rabbitmq

import (
	"fmt"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AuditQueue      = "audit_queue"
	auditBindingKey = gateway.SettlementRoutingPrefix + "#"
)

// RetryQueueName é a fila de espera de uma fila de trabalho: mensagens expiram
// lá (TTL por mensagem) e voltam para a original pelo dead-letter.
func RetryQueueName(queue string) string {
	return queue + ".retry"
}

// DeclareSettlementExchange garante o exchange tópico dos eventos de liquidação (idempotente).
func DeclareSettlementExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		gateway.SettlementExchange, // name
		"topic",                    // type
		true,                       // durable
		false,                      // auto-deleted
		false,                      // internal
		false,                      // no-wait
		nil,                        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", gateway.SettlementExchange, err)
	}
	return nil
}

// DeclareAuditQueue liga a audit_queue a todos os eventos transaction.*
func DeclareAuditQueue(ch *amqp.Channel) error {
	if err := DeclareSettlementExchange(ch); err != nil {
		return err
	}
	if err := DeclareWorkQueue(ch, AuditQueue); err != nil {
		return err
	}
	if err := ch.QueueBind(AuditQueue, auditBindingKey, gateway.SettlementExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", AuditQueue, err)
	}
	return nil
}

// DeclareWorkQueue declara a fila durável e sua fila de retry.
func DeclareWorkQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	_, err := ch.QueueDeclare(
		RetryQueueName(queue),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue for %s: %w", queue, err)
	}
	return nil
}
