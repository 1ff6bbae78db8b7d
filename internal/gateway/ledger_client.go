package gateway

import (
	"context"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerClient é o serviço remoto que guarda os saldos das contas.
type LedgerClient interface {
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)

	// FindAccountByNumber retorna (nil, nil) quando a conta não existe
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
}
