package gateway

import (
	"context"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
)

// TransactionRepository é o contrato do Transaction Store.
// Chave de idempotência e código de correlação são únicos: violar qualquer um
// devolve domain.ErrDuplicateRequest.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *domain.Transaction) error

	// Update grava status, código de correlação, motivo, saldos e descrição.
	// reversal_of_id e created_at nunca são sobrescritos.
	Update(ctx context.Context, transaction *domain.Transaction) error

	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	GetByCorrelationCode(ctx context.Context, code string) (*domain.Transaction, error)

	// Lock Pessimista: Retorna a transação travando a linha (SELECT ... FOR UPDATE)
	GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*domain.Transaction, error)

	// GetReversalOf busca o registro que aponta para o original via reversal_of_id
	GetReversalOf(ctx context.Context, originalID int64) (*domain.Transaction, error)

	ListByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error)
	ListPendingBefore(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error)

	// LockKey serializa, até o fim da transação atual, quem processa a mesma chave.
	LockKey(ctx context.Context, key string) error

	// WithTx faz o repositório participar da transação atômica iniciada no UseCase
	WithTx(tx TransactionObject) TransactionRepository
}
