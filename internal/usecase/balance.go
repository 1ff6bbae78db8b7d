package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ledgerMove lembra o que foi feito no ledger para poder desfazer se o Uow falhar.
type ledgerMove struct {
	accountID int64
	amount    decimal.Decimal
	credit    bool
}

// balanceUpdater aplica débitos/créditos no ledger remoto (GET saldo -> SET saldo novo).
// Quem chama deve segurar o lock da conta (lockAccounts) dentro do Uow.
type balanceUpdater struct {
	ledger gateway.LedgerClient
}

func newBalanceUpdater(ledger gateway.LedgerClient) *balanceUpdater {
	return &balanceUpdater{ledger: ledger}
}

func (b *balanceUpdater) Debit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return b.apply(ctx, accountID, func(a *domain.Account) error { return a.Debit(amount) })
}

func (b *balanceUpdater) Credit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return b.apply(ctx, accountID, func(a *domain.Account) error { return a.Credit(amount) })
}

// revert desfaz no ledger, em ordem inversa, movimentos de um Uow que não commitou.
func (b *balanceUpdater) revert(ctx context.Context, reference string, moves ...ledgerMove) {
	ctx = context.WithoutCancel(ctx)
	for i := len(moves) - 1; i >= 0; i-- {
		move := moves[i]
		var err error
		if move.credit {
			_, err = b.Debit(ctx, move.accountID, move.amount)
		} else {
			_, err = b.Credit(ctx, move.accountID, move.amount)
		}
		if err != nil {
			log.Error().Err(err).Str("reference", reference).Int64("account", move.accountID).
				Str("amount", move.amount.String()).Msg("Falha ao desfazer movimento no ledger após rollback")
		}
	}
}

func (b *balanceUpdater) apply(ctx context.Context, accountID int64, op func(*domain.Account) error) (decimal.Decimal, error) {
	balance, err := b.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("falha ao consultar saldo da conta %d: %w", accountID, err)
	}

	account := domain.Account{ID: accountID, Balance: balance}
	if err := op(&account); err != nil {
		return balance, err
	}

	if err := b.ledger.SetBalance(ctx, accountID, account.Balance); err != nil {
		return balance, fmt.Errorf("falha ao atualizar saldo da conta %d: %w", accountID, err)
	}
	return account.Balance, nil
}

// lockAccounts trava as contas sempre na mesma ordem (menor ID primeiro) para evitar deadlock
// entre movimentos A->B e B->A concorrentes.
func lockAccounts(ctx context.Context, repo gateway.TransactionRepository, ids ...int64) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		if err := repo.LockKey(ctx, fmt.Sprintf("account:%d", id)); err != nil {
			return fmt.Errorf("falha ao travar conta %d: %w", id, err)
		}
		last = id
	}
	return nil
}

// repoFromContext devolve o repositório ligado à transação aberta pelo Uow.
func repoFromContext(ctx context.Context, repo gateway.TransactionRepository) (gateway.TransactionRepository, error) {
	transactionObject, err := gateway.TxFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro crítico: %w", err)
	}
	return repo.WithTx(transactionObject), nil
}
