package gateway

import (
	"context"
	"time"
)

// SettlementEvent é publicado após cada escrita terminal e persistido pelo worker de auditoria.
type SettlementEvent struct {
	TransactionID   int64     `json:"transaction_id"`
	Reference       string    `json:"reference"`
	CorrelationCode string    `json:"correlation_code,omitempty"`
	OperationType   string    `json:"operation_type"`
	Status          string    `json:"status"`
	Amount          string    `json:"amount"`
	OriginAccount   *int64    `json:"origin_account,omitempty"`
	DestAccount     *int64    `json:"destination_account,omitempty"`
	ExternalBank    string    `json:"external_bank,omitempty"`
	ReasonCode      string    `json:"reason_code,omitempty"`
	Description     string    `json:"description,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type AuditRepository interface {
	Save(ctx context.Context, event SettlementEvent) error
}
