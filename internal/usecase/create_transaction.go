package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CreateTransactionInput define os dados de qualquer operação pedida pelo cliente.
// Usamos DTOs para não acoplar a API HTTP ao UseCase.
type CreateTransactionInput struct {
	OperationType        domain.OperationType
	OriginAccountID      *int64
	DestinationAccountID *int64
	ExternalAccount      string
	ExternalBankID       string
	BeneficiaryName      string
	Amount               decimal.Decimal
	Description          string
	IdempotencyKey       string
}

// CreateTransactionUseCase trata depósitos, saques e transferências internas.
// Transferências para outros bancos seguem para a saga.
type CreateTransactionUseCase struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager // Nosso "Unit of Work"
	eventPublisher        gateway.EventPublisher
	balances              *balanceUpdater
	outbound              *OutboundTransferUseCase
}

func NewCreateTransaction(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	publisher gateway.EventPublisher,
	outbound *OutboundTransferUseCase,
) *CreateTransactionUseCase {
	return &CreateTransactionUseCase{
		transactionRepository: transactionRepo,
		transactionManager:    txManager,
		eventPublisher:        publisher,
		balances:              newBalanceUpdater(ledger),
		outbound:              outbound,
	}
}

// normalized descarta a conta que não participa da operação: depósito só credita, saque só debita.
func (in CreateTransactionInput) normalized() CreateTransactionInput {
	switch in.OperationType {
	case domain.OperationDeposit:
		in.OriginAccountID = nil
	case domain.OperationWithdrawal:
		in.DestinationAccountID = nil
	}
	return in
}

func (in CreateTransactionInput) validate() error {
	if !in.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	switch in.OperationType {
	case domain.OperationDeposit:
		if in.DestinationAccountID == nil {
			return domain.ValidationError("destination account is required for %s", in.OperationType)
		}
	case domain.OperationWithdrawal:
		if in.OriginAccountID == nil {
			return domain.ValidationError("origin account is required for %s", in.OperationType)
		}
	case domain.OperationInternalTransfer:
		if in.OriginAccountID == nil || in.DestinationAccountID == nil {
			return domain.ValidationError("origin and destination accounts are required for %s", in.OperationType)
		}
		if *in.OriginAccountID == *in.DestinationAccountID {
			return domain.ValidationError("origin and destination accounts must be different")
		}
	default:
		return domain.ValidationError("unsupported operation type %q", in.OperationType)
	}
	return nil
}

func (u *CreateTransactionUseCase) Execute(ctx context.Context, input CreateTransactionInput) (*TransactionOutput, error) {
	if input.OperationType == domain.OperationOutboundTransfer {
		if input.OriginAccountID == nil {
			return nil, domain.ValidationError("origin account is required for %s", input.OperationType)
		}
		return u.outbound.Execute(ctx, OutboundTransferInput{
			OriginAccountID: *input.OriginAccountID,
			ExternalAccount: input.ExternalAccount,
			ExternalBankID:  input.ExternalBankID,
			BeneficiaryName: input.BeneficiaryName,
			Amount:          input.Amount,
			Description:     input.Description,
			IdempotencyKey:  input.IdempotencyKey,
		})
	}

	input = input.normalized()
	if err := input.validate(); err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	var (
		createdTransaction *domain.Transaction
		duplicate          bool
		moves              []ledgerMove
	)

	// Se a função anônima retornar erro, o Run faz ROLLBACK; se retornar nil, COMMIT.
	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionRepoTx, err := repoFromContext(contextWithTx, u.transactionRepository)
		if err != nil {
			return err
		}
		if err := transactionRepoTx.LockKey(contextWithTx, key); err != nil {
			return err
		}

		existing, err := transactionRepoTx.GetByIdempotencyKey(contextWithTx, key)
		if err == nil {
			createdTransaction, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		// Ordenação de IDs para evitar Deadlock: A->B e B->A travam sempre o menor primeiro
		var ids []int64
		if input.OriginAccountID != nil {
			ids = append(ids, *input.OriginAccountID)
		}
		if input.DestinationAccountID != nil {
			ids = append(ids, *input.DestinationAccountID)
		}
		if err := lockAccounts(contextWithTx, transactionRepoTx, ids...); err != nil {
			return err
		}

		createdTransaction = &domain.Transaction{
			IdempotencyKey: key,
			OperationType:  input.OperationType,
			Amount:         input.Amount,
			Description:    input.Description,
			Status:         domain.StatusCompleted,
		}

		// Débito (quem envia)
		if input.OriginAccountID != nil {
			balance, err := u.balances.Debit(contextWithTx, *input.OriginAccountID, input.Amount)
			if err != nil {
				return fmt.Errorf("falha no débito (origem %d): %w", *input.OriginAccountID, err)
			}
			moves = append(moves, ledgerMove{accountID: *input.OriginAccountID, amount: input.Amount, credit: false})
			createdTransaction.OriginAccountID = domain.Int64Ptr(*input.OriginAccountID)
			createdTransaction.ResultingBalance = decimal.NewNullDecimal(balance)
		}

		// Crédito (quem recebe)
		if input.DestinationAccountID != nil {
			balance, err := u.balances.Credit(contextWithTx, *input.DestinationAccountID, input.Amount)
			if err != nil {
				return fmt.Errorf("falha no crédito (destino %d): %w", *input.DestinationAccountID, err)
			}
			moves = append(moves, ledgerMove{accountID: *input.DestinationAccountID, amount: input.Amount, credit: true})
			createdTransaction.DestinationAccountID = domain.Int64Ptr(*input.DestinationAccountID)
			if createdTransaction.OriginAccountID == nil {
				createdTransaction.ResultingBalance = decimal.NewNullDecimal(balance)
			} else {
				createdTransaction.ResultingBalanceDestination = decimal.NewNullDecimal(balance)
			}
		}

		if err := transactionRepoTx.Create(contextWithTx, createdTransaction); err != nil {
			return fmt.Errorf("falha ao salvar histórico da transação: %w", err)
		}
		return nil
	})

	if err != nil {
		u.balances.revert(ctx, key, moves...)
		if errors.Is(err, domain.ErrDuplicateRequest) {
			if existing, getErr := u.transactionRepository.GetByIdempotencyKey(ctx, key); getErr == nil {
				return &TransactionOutput{Transaction: existing, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	if duplicate {
		return &TransactionOutput{Transaction: createdTransaction, Duplicate: true}, nil
	}

	log.Info().Str("reference", key).Str("operation", string(input.OperationType)).
		Str("amount", input.Amount.String()).Msg("Transação local concluída")
	publishSettlement(ctx, u.eventPublisher, createdTransaction)
	return &TransactionOutput{Transaction: createdTransaction}, nil
}
