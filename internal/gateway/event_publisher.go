package gateway

import "context"

const (
	// Exchange tópico onde saem os eventos de liquidação
	SettlementExchange = "ledger_events"
	// Prefixo das routing keys: transaction.completed, transaction.failed...
	SettlementRoutingPrefix = "transaction."
)

type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}
