package usecase

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/rs/zerolog/log"
)

// Códigos de correlação do switch têm exatamente seis dígitos.
var correlationCodePattern = regexp.MustCompile(`^\d{6}$`)

type FindTransactionUseCase struct {
	transactionRepository gateway.TransactionRepository
	reconciler            *ReconcileUseCase
}

func NewFindTransaction(repo gateway.TransactionRepository, reconciler *ReconcileUseCase) *FindTransactionUseCase {
	return &FindTransactionUseCase{transactionRepository: repo, reconciler: reconciler}
}

// ByReference aceita código de correlação, ID numérico ou chave de idempotência.
// Um PENDING encontrado é reconciliado antes de voltar.
func (u *FindTransactionUseCase) ByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.ValidationError("reference is required")
	}

	var (
		t   *domain.Transaction
		err error
	)
	if correlationCodePattern.MatchString(reference) {
		t, err = u.transactionRepository.GetByCorrelationCode(ctx, reference)
	} else if id, convErr := strconv.ParseInt(reference, 10, 64); convErr == nil {
		t, err = u.transactionRepository.GetByID(ctx, id)
	} else {
		t, err = u.transactionRepository.GetByIdempotencyKey(ctx, reference)
	}
	if err != nil {
		return nil, err
	}

	if t.Status == domain.StatusPending && u.reconciler != nil {
		resolved, err := u.reconciler.Resolve(ctx, t)
		if err != nil {
			log.Warn().Err(err).Str("reference", t.IdempotencyKey).Msg("Reconciliação na busca falhou, devolvendo PENDING")
			return t, nil
		}
		return resolved, nil
	}
	return t, nil
}

// ByAccount lista os movimentos da conta, mais recentes primeiro. Quando a conta é o destino
// de uma transferência interna, o saldo exibido é o do lado dela.
func (u *FindTransactionUseCase) ByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	if accountID <= 0 {
		return nil, domain.ValidationError("accountId must be positive")
	}
	transactions, err := u.transactionRepository.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for i := range transactions {
		t := &transactions[i]
		isDestination := t.DestinationAccountID != nil && *t.DestinationAccountID == accountID
		if isDestination && t.OriginAccountID != nil && t.ResultingBalanceDestination.Valid {
			t.ResultingBalance = t.ResultingBalanceDestination
		}
	}
	return transactions, nil
}
