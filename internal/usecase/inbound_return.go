package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// InboundReturnInput é uma devolução (pacs.004) vinda do switch.
type InboundReturnInput struct {
	ReturnInstructionID   string
	OriginalInstructionID string
	OriginatingBankID     string
	ReasonCode            string
	Amount                decimal.Decimal // informativo; o valor devolvido é sempre o do original
	CreationDateTime      string
}

type InboundReturnUseCase struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager
	eventPublisher        gateway.EventPublisher
	balances              *balanceUpdater
	bankCode              string
}

func NewInboundReturn(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	publisher gateway.EventPublisher,
	bankCode string,
) *InboundReturnUseCase {
	return &InboundReturnUseCase{
		transactionRepository: transactionRepo,
		transactionManager:    txManager,
		eventPublisher:        publisher,
		balances:              newBalanceUpdater(ledger),
		bankCode:              bankCode,
	}
}

func (u *InboundReturnUseCase) Execute(ctx context.Context, input InboundReturnInput) (*InboundResult, error) {
	// Eco da nossa própria devolução: o switch roteou de volta pra nós
	if input.OriginatingBankID != "" && strings.EqualFold(input.OriginatingBankID, u.bankCode) {
		log.Info().Str("return_id", input.ReturnInstructionID).Msg("Devolução originada por este banco, ignorando")
		metrics.InboundTotal.WithLabelValues("return", "ignored").Inc()
		return &InboundResult{Ignored: true}, nil
	}
	if strings.TrimSpace(input.ReturnInstructionID) == "" {
		return nil, domain.ValidationError("returnInstructionId is required")
	}
	if strings.TrimSpace(input.OriginalInstructionID) == "" {
		return nil, domain.ValidationError("originalInstructionId is required")
	}

	var (
		original  *domain.Transaction
		refund    *domain.Transaction
		duplicate bool
		move      *ledgerMove
	)

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		repoTx, err := repoFromContext(contextWithTx, u.transactionRepository)
		if err != nil {
			return err
		}
		if err := repoTx.LockKey(contextWithTx, input.ReturnInstructionID); err != nil {
			return err
		}

		existing, err := repoTx.GetByIdempotencyKey(contextWithTx, input.ReturnInstructionID)
		if err == nil {
			refund, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		// Lock Pessimista no original: devoluções concorrentes do mesmo original ficam em fila
		original, err = repoTx.GetByIdempotencyKeyForUpdate(contextWithTx, input.OriginalInstructionID)
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrOriginalNotFound, input.OriginalInstructionID)
		}
		if err != nil {
			return err
		}

		if original.Status.IsUndone() {
			duplicate = true
			return nil
		}

		switch original.OperationType {
		case domain.OperationOutboundTransfer:
			refund, move, err = u.returnOutbound(contextWithTx, repoTx, original, input)
		case domain.OperationInboundTransfer:
			refund, move, err = u.reverseInbound(contextWithTx, repoTx, original, input)
		default:
			return domain.ValidationError("operation %s cannot be returned", original.OperationType)
		}
		if err != nil || refund == nil {
			return err
		}

		if err := repoTx.Update(contextWithTx, original); err != nil {
			return fmt.Errorf("falha ao atualizar original %s: %w", original.IdempotencyKey, err)
		}
		return repoTx.Create(contextWithTx, refund)
	})

	if err != nil {
		if move != nil {
			u.balances.revert(ctx, input.ReturnInstructionID, *move)
		}
		if errors.Is(err, domain.ErrDuplicateRequest) {
			metrics.InboundTotal.WithLabelValues("return", "duplicate").Inc()
			return &InboundResult{Duplicate: true}, nil
		}
		metrics.InboundTotal.WithLabelValues("return", outcomeLabel(err)).Inc()
		return nil, err
	}

	if duplicate || refund == nil {
		metrics.InboundTotal.WithLabelValues("return", "duplicate").Inc()
		log.Info().Str("return_id", input.ReturnInstructionID).Msg("Devolução já aplicada, ignorando")
		return &InboundResult{Transaction: refund, Duplicate: true}, nil
	}

	metrics.InboundTotal.WithLabelValues("return", "applied").Inc()
	log.Info().Str("return_id", input.ReturnInstructionID).Str("original", original.IdempotencyKey).
		Str("original_status", string(original.Status)).Msg("Devolução aplicada")
	publishSettlement(ctx, u.eventPublisher, original)
	publishSettlement(ctx, u.eventPublisher, refund)
	return &InboundResult{Transaction: refund}, nil
}

// returnOutbound: o dinheiro que enviamos voltou. Credita a origem e marca RETURNED.
func (u *InboundReturnUseCase) returnOutbound(ctx context.Context, repoTx gateway.TransactionRepository, original *domain.Transaction, input InboundReturnInput) (*domain.Transaction, *ledgerMove, error) {
	switch original.Status {
	case domain.StatusFailed:
		// Já compensado pela saga ou pela reconciliação; creditar de novo duplicaria o dinheiro
		log.Warn().Str("original", original.IdempotencyKey).Msg("Devolução para transferência já compensada, ignorando")
		return nil, nil, nil
	case domain.StatusPending:
		// O switch concluiu antes da nossa confirmação e já devolveu
		if err := original.TransitionTo(domain.StatusCompleted); err != nil {
			return nil, nil, err
		}
	}
	if original.OriginAccountID == nil {
		return nil, nil, domain.ValidationError("original %s has no origin account", original.IdempotencyKey)
	}

	origin := *original.OriginAccountID
	if err := lockAccounts(ctx, repoTx, origin); err != nil {
		return nil, nil, err
	}
	newBalance, err := u.balances.Credit(ctx, origin, original.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao creditar devolução (conta %d): %w", origin, err)
	}
	move := &ledgerMove{accountID: origin, amount: original.Amount, credit: true}

	if err := original.TransitionTo(domain.StatusReturned); err != nil {
		return nil, move, err
	}

	refund := u.linkedRecord(original, input, domain.OperationInboundRefund)
	refund.DestinationAccountID = domain.Int64Ptr(origin)
	refund.ResultingBalance = decimal.NewNullDecimal(newBalance)
	return refund, move, nil
}

// reverseInbound: o banco de origem pediu de volta o que recebemos. Debita o destino e marca REVERSED.
func (u *InboundReturnUseCase) reverseInbound(ctx context.Context, repoTx gateway.TransactionRepository, original *domain.Transaction, input InboundReturnInput) (*domain.Transaction, *ledgerMove, error) {
	if original.Status != domain.StatusCompleted {
		return nil, nil, domain.ValidationError("original %s is %s and cannot be reversed", original.IdempotencyKey, original.Status)
	}
	if original.DestinationAccountID == nil {
		return nil, nil, domain.ValidationError("original %s has no destination account", original.IdempotencyKey)
	}

	destination := *original.DestinationAccountID
	if err := lockAccounts(ctx, repoTx, destination); err != nil {
		return nil, nil, err
	}
	newBalance, err := u.balances.Debit(ctx, destination, original.Amount)
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return nil, nil, domain.Reject(domain.ErrCannotReverseFunds, "AM04",
			fmt.Sprintf("cannot reverse %s, insufficient funds in account %d", original.IdempotencyKey, destination))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao debitar reverso (conta %d): %w", destination, err)
	}
	move := &ledgerMove{accountID: destination, amount: original.Amount, credit: false}

	if err := original.TransitionTo(domain.StatusReversed); err != nil {
		return nil, move, err
	}

	reversal := u.linkedRecord(original, input, domain.OperationOutboundRefundDebit)
	reversal.OriginAccountID = domain.Int64Ptr(destination)
	reversal.ResultingBalance = decimal.NewNullDecimal(newBalance)
	return reversal, move, nil
}

func (u *InboundReturnUseCase) linkedRecord(original *domain.Transaction, input InboundReturnInput, op domain.OperationType) *domain.Transaction {
	if !input.Amount.IsZero() && !input.Amount.Equal(original.Amount) {
		log.Warn().Str("return_id", input.ReturnInstructionID).Str("informed", input.Amount.String()).
			Str("original", original.Amount.String()).Msg("Valor da devolução difere do original, usando valor original")
	}
	reasonCode := strings.ToUpper(strings.TrimSpace(input.ReasonCode))

	return &domain.Transaction{
		IdempotencyKey: input.ReturnInstructionID,
		OperationType:  op,
		ExternalBankID: domain.StringPtr(firstNonEmpty(input.OriginatingBankID, domain.StringValue(original.ExternalBankID))),
		Amount:         original.Amount,
		Description:    fmt.Sprintf("Return of %s (%s)", original.IdempotencyKey, firstNonEmpty(reasonCode, domain.DefaultISOReason)),
		Status:         domain.StatusCompleted,
		ReversalOfID:   domain.Int64Ptr(original.ID),
		ReasonCode:     domain.StringPtr(reasonCode),
		CreatedAt:      parseTimestamp(input.CreationDateTime),
	}
}

func outcomeLabel(err error) string {
	if domain.IsBusinessError(err) {
		return "rejected"
	}
	return "error"
}
