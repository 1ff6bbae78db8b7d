package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReversalInput identifica o original pelo ID interno ou pelo código de correlação.
type ReversalInput struct {
	TransactionID   int64
	CorrelationCode string
	ReasonCode      string // motivo interno (TECH, FRAUD...) ou ISO direto
	Description     string
}

// RequestReversalUseCase devolve ao cliente uma transferência enviada e já liquidada.
type RequestReversalUseCase struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager
	peer                  gateway.SwitchPeer
	eventPublisher        gateway.EventPublisher
	reconciler            *ReconcileUseCase
	balances              *balanceUpdater
	bankCode              string
	now                   func() time.Time
}

func NewRequestReversal(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	peer gateway.SwitchPeer,
	publisher gateway.EventPublisher,
	reconciler *ReconcileUseCase,
	bankCode string,
) *RequestReversalUseCase {
	return &RequestReversalUseCase{
		transactionRepository: transactionRepo,
		transactionManager:    txManager,
		peer:                  peer,
		eventPublisher:        publisher,
		reconciler:            reconciler,
		balances:              newBalanceUpdater(ledger),
		bankCode:              bankCode,
		now:                   time.Now,
	}
}

func (u *RequestReversalUseCase) Execute(ctx context.Context, input ReversalInput) (*TransactionOutput, error) {
	original, err := u.findOriginal(ctx, input)
	if err != nil {
		return nil, err
	}

	if original.Status == domain.StatusPending {
		if original, err = u.reconciler.Resolve(ctx, original); err != nil {
			return nil, err
		}
	}
	if err := u.checkReversible(ctx, original); err != nil {
		return nil, err
	}

	isoCode := domain.MapReversalReason(input.ReasonCode)
	returnID := uuid.NewString()

	request := newRefundRequest(u.bankCode, returnID, original.IdempotencyKey, isoCode, original.Amount, u.now())
	response, err := u.peer.RequestRefund(ctx, request)
	switch {
	case err != nil && isTolerableRefundError(err):
		log.Warn().Str("reference", original.IdempotencyKey).Msg("Switch não encontrou a instrução original, seguindo com reverso local")
	case err != nil:
		return nil, fmt.Errorf("falha ao solicitar devolução no switch: %w", err)
	case !response.Success:
		raw := response.ErrorMessage()
		return nil, domain.Reject(domain.ErrPeerRejected, domain.ExtractISOCode(raw), domain.FriendlyReason(raw))
	}

	refund, err := u.applyReversal(ctx, original.IdempotencyKey, returnID, isoCode, input.Description)
	if err != nil {
		return nil, err
	}

	log.Info().Str("reference", original.IdempotencyKey).Str("return_id", returnID).Str("reason", isoCode).
		Msg("Reverso aplicado, valor devolvido à conta de origem")
	return &TransactionOutput{Transaction: refund}, nil
}

func (u *RequestReversalUseCase) findOriginal(ctx context.Context, input ReversalInput) (*domain.Transaction, error) {
	var (
		original *domain.Transaction
		err      error
	)
	switch {
	case input.TransactionID > 0:
		original, err = u.transactionRepository.GetByID(ctx, input.TransactionID)
	case strings.TrimSpace(input.CorrelationCode) != "":
		original, err = u.transactionRepository.GetByCorrelationCode(ctx, strings.TrimSpace(input.CorrelationCode))
	default:
		return nil, domain.ValidationError("transactionId or correlationCode is required")
	}
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, domain.ErrOriginalNotFound
	}
	return original, err
}

func (u *RequestReversalUseCase) checkReversible(ctx context.Context, original *domain.Transaction) error {
	if original.OperationType != domain.OperationOutboundTransfer {
		return domain.ValidationError("only outbound transfers can be reversed, got %s", original.OperationType)
	}
	if original.Status.IsUndone() {
		return domain.ErrAlreadyReversed
	}
	if original.Status != domain.StatusCompleted {
		return domain.ValidationError("transaction %s is %s and cannot be reversed", original.IdempotencyKey, original.Status)
	}

	_, err := u.transactionRepository.GetReversalOf(ctx, original.ID)
	if err == nil {
		return domain.ErrAlreadyReversed
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return err
	}
	return nil
}

// applyReversal re-checa o original com a linha travada: uma devolução recebida pode ter chegado antes.
func (u *RequestReversalUseCase) applyReversal(ctx context.Context, originalKey, returnID, isoCode, description string) (*domain.Transaction, error) {
	var (
		original *domain.Transaction
		refund   *domain.Transaction
		credited bool
		origin   int64
	)

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		repoTx, err := repoFromContext(contextWithTx, u.transactionRepository)
		if err != nil {
			return err
		}

		original, err = repoTx.GetByIdempotencyKeyForUpdate(contextWithTx, originalKey)
		if err != nil {
			return err
		}
		if original.Status.IsUndone() {
			return domain.ErrAlreadyReversed
		}
		if original.OriginAccountID == nil {
			return domain.ValidationError("transaction %s has no origin account", originalKey)
		}

		origin = *original.OriginAccountID
		if err := lockAccounts(contextWithTx, repoTx, origin); err != nil {
			return err
		}
		newBalance, err := u.balances.Credit(contextWithTx, origin, original.Amount)
		if err != nil {
			return fmt.Errorf("falha ao creditar reverso (conta %d): %w", origin, err)
		}
		credited = true

		if err := original.TransitionTo(domain.StatusReversed); err != nil {
			return err
		}
		if err := repoTx.Update(contextWithTx, original); err != nil {
			return err
		}

		refund = &domain.Transaction{
			IdempotencyKey:       returnID,
			OperationType:        domain.OperationInboundRefund,
			DestinationAccountID: domain.Int64Ptr(origin),
			ExternalBankID:       original.ExternalBankID,
			Amount:               original.Amount,
			ResultingBalance:     decimal.NewNullDecimal(newBalance),
			Description:          firstNonEmpty(description, "Reversal of "+originalKey),
			Status:               domain.StatusCompleted,
			ReversalOfID:         domain.Int64Ptr(original.ID),
			ReasonCode:           domain.StringPtr(isoCode),
		}
		return repoTx.Create(contextWithTx, refund)
	})

	if err != nil {
		if credited {
			if _, debitErr := u.balances.Debit(context.WithoutCancel(ctx), origin, original.Amount); debitErr != nil {
				log.Error().Err(debitErr).Str("reference", originalKey).Msg("Falha ao desfazer crédito do reverso")
			}
		}
		// O índice único em reversal_of_id barra um segundo reverso concorrente
		if errors.Is(err, domain.ErrDuplicateRequest) {
			return nil, domain.ErrAlreadyReversed
		}
		return nil, err
	}

	publishSettlement(ctx, u.eventPublisher, original)
	publishSettlement(ctx, u.eventPublisher, refund)
	return refund, nil
}
