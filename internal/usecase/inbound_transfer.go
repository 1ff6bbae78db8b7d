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

// InboundTransferInput é uma transferência recebida de outro banco via switch.
type InboundTransferInput struct {
	InstructionID            string
	MessageID                string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	OriginBankID             string
	DebtorName               string
	Description              string
}

// InboundResult resume o que aconteceu com uma notificação recebida.
type InboundResult struct {
	Transaction *domain.Transaction
	Duplicate   bool
	Ignored     bool
}

type InboundTransferUseCase struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager
	ledger                gateway.LedgerClient
	eventPublisher        gateway.EventPublisher
	balances              *balanceUpdater
}

func NewInboundTransfer(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	publisher gateway.EventPublisher,
) *InboundTransferUseCase {
	return &InboundTransferUseCase{
		transactionRepository: transactionRepo,
		transactionManager:    txManager,
		ledger:                ledger,
		eventPublisher:        publisher,
		balances:              newBalanceUpdater(ledger),
	}
}

// Execute aplica a transferência exatamente uma vez, independente de quantas entregas chegarem.
func (u *InboundTransferUseCase) Execute(ctx context.Context, input InboundTransferInput) (*InboundResult, error) {
	if strings.TrimSpace(input.InstructionID) == "" {
		return nil, domain.ValidationError("instructionId is required")
	}
	if strings.TrimSpace(input.DestinationAccountNumber) == "" {
		return nil, domain.ValidationError("creditor account is required")
	}
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := u.ledger.FindAccountByNumber(ctx, input.DestinationAccountNumber)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar conta %s: %w", input.DestinationAccountNumber, err)
	}
	if account == nil {
		metrics.InboundTotal.WithLabelValues("transfer", "rejected").Inc()
		return nil, domain.Reject(domain.ErrAccountNotFound, "AC01",
			fmt.Sprintf("destination account %s does not exist (AC01)", input.DestinationAccountNumber))
	}

	var (
		record    *domain.Transaction
		duplicate bool
		credited  bool
	)

	err = u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		repoTx, err := repoFromContext(contextWithTx, u.transactionRepository)
		if err != nil {
			return err
		}
		// Entregas concorrentes da mesma instrução esperam aqui
		if err := repoTx.LockKey(contextWithTx, input.InstructionID); err != nil {
			return err
		}

		// Dedup ANTES de qualquer movimento de saldo
		existing, err := repoTx.GetByIdempotencyKey(contextWithTx, input.InstructionID)
		if err == nil {
			record, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		if err := lockAccounts(contextWithTx, repoTx, account.ID); err != nil {
			return err
		}
		newBalance, err := u.balances.Credit(contextWithTx, account.ID, input.Amount)
		if err != nil {
			return fmt.Errorf("falha no crédito (destino %d): %w", account.ID, err)
		}
		credited = true

		record = &domain.Transaction{
			IdempotencyKey:       input.InstructionID,
			OperationType:        domain.OperationInboundTransfer,
			DestinationAccountID: domain.Int64Ptr(account.ID),
			ExternalBankID:       domain.StringPtr(input.OriginBankID),
			Amount:               input.Amount,
			ResultingBalance:     decimal.NewNullDecimal(newBalance),
			Description:          firstNonEmpty(input.Description, "Transfer received from "+input.OriginBankID),
			Status:               domain.StatusCompleted,
		}
		return repoTx.Create(contextWithTx, record)
	})

	if err != nil {
		if credited {
			u.revertCredit(ctx, account.ID, input)
		}
		if errors.Is(err, domain.ErrDuplicateRequest) {
			metrics.InboundTotal.WithLabelValues("transfer", "duplicate").Inc()
			log.Info().Str("instruction_id", input.InstructionID).Msg("Transferência recebida duplicada (corrida), ignorando")
			return &InboundResult{Duplicate: true}, nil
		}
		metrics.InboundTotal.WithLabelValues("transfer", "error").Inc()
		return nil, err
	}

	if duplicate {
		metrics.InboundTotal.WithLabelValues("transfer", "duplicate").Inc()
		log.Info().Str("instruction_id", input.InstructionID).Msg("Transferência recebida já processada, ignorando")
		return &InboundResult{Transaction: record, Duplicate: true}, nil
	}

	metrics.InboundTotal.WithLabelValues("transfer", "applied").Inc()
	log.Info().Str("instruction_id", input.InstructionID).Int64("account", account.ID).
		Str("amount", input.Amount.String()).Msg("Transferência recebida aplicada")
	publishSettlement(ctx, u.eventPublisher, record)
	return &InboundResult{Transaction: record}, nil
}

// revertCredit desfaz o crédito quando o registro não chegou a ser comitado.
func (u *InboundTransferUseCase) revertCredit(ctx context.Context, accountID int64, input InboundTransferInput) {
	if _, err := u.balances.Debit(context.WithoutCancel(ctx), accountID, input.Amount); err != nil {
		log.Error().Err(err).Str("instruction_id", input.InstructionID).Msg("Falha ao desfazer crédito de transferência recebida")
	}
}
