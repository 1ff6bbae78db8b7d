package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/rs/zerolog/log"
)

// publishSettlement roda depois do Commit. Falha de publicação não desfaz a liquidação.
func publishSettlement(ctx context.Context, publisher gateway.EventPublisher, t *domain.Transaction) {
	if t == nil {
		return
	}
	metrics.TransactionsTotal.WithLabelValues(string(t.OperationType), string(t.Status)).Inc()

	if publisher == nil {
		return
	}

	event := gateway.SettlementEvent{
		TransactionID:   t.ID,
		Reference:       t.IdempotencyKey,
		CorrelationCode: domain.StringValue(t.CorrelationCode),
		OperationType:   string(t.OperationType),
		Status:          string(t.Status),
		Amount:          t.Amount.StringFixed(2),
		OriginAccount:   t.OriginAccountID,
		DestAccount:     t.DestinationAccountID,
		ExternalBank:    domain.StringValue(t.ExternalBankID),
		ReasonCode:      domain.StringValue(t.ReasonCode),
		Description:     t.Description,
		OccurredAt:      time.Now().UTC(),
	}

	routingKey := gateway.SettlementRoutingPrefix + strings.ToLower(string(t.Status))
	if err := publisher.Publish(ctx, gateway.SettlementExchange, routingKey, event); err != nil {
		// Apenas logamos o erro, não falhamos a operação
		log.Error().Err(err).Str("reference", t.IdempotencyKey).Msg("Falha ao publicar evento de liquidação")
	}
}
