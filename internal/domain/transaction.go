package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType define quais contas uma transação toca.
type OperationType string

const (
	OperationDeposit             OperationType = "DEPOSIT"
	OperationWithdrawal          OperationType = "WITHDRAWAL"
	OperationInternalTransfer    OperationType = "INTERNAL_TRANSFER"
	OperationOutboundTransfer    OperationType = "OUTBOUND_TRANSFER"
	OperationInboundTransfer     OperationType = "INBOUND_TRANSFER"
	OperationInboundRefund       OperationType = "INBOUND_REFUND"
	OperationOutboundRefundDebit OperationType = "OUTBOUND_REFUND_DEBIT"
)

func (o OperationType) Valid() bool {
	switch o {
	case OperationDeposit, OperationWithdrawal, OperationInternalTransfer,
		OperationOutboundTransfer, OperationInboundTransfer,
		OperationInboundRefund, OperationOutboundRefundDebit:
		return true
	}
	return false
}

// Transaction é o registro de liquidação. Nunca é apagado: é a trilha de auditoria.
// O valor é sempre positivo; a direção vem do tipo de operação e das contas preenchidas.
type Transaction struct {
	ID                          int64
	IdempotencyKey              string
	CorrelationCode             *string
	OperationType               OperationType
	OriginAccountID             *int64
	DestinationAccountID        *int64
	ExternalAccount             *string
	ExternalBankID              *string
	Amount                      decimal.Decimal
	ResultingBalance            decimal.NullDecimal
	ResultingBalanceDestination decimal.NullDecimal
	Description                 string
	Status                      Status
	ReversalOfID                *int64
	ReasonCode                  *string
	CreatedAt                   time.Time
}

// IsInterbank indica se a operação envolve o switch.
func (t *Transaction) IsInterbank() bool {
	switch t.OperationType {
	case OperationOutboundTransfer, OperationInboundTransfer,
		OperationInboundRefund, OperationOutboundRefundDebit:
		return true
	}
	return false
}

// Age calcula há quanto tempo o registro existe.
func (t *Transaction) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// TransitionTo aplica uma mudança de status validando a tabela de transições.
func (t *Transaction) TransitionTo(next Status) error {
	if !t.Status.CanTransitionTo(next) {
		return &TransitionError{From: t.Status, To: next}
	}
	t.Status = next
	return nil
}

// Helpers para campos opcionais
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
