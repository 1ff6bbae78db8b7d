package gateway

import (
	"context"
	"errors"
)

// TransactionObject é o "crachá" opaco que carrega a transação do banco
type TransactionObject interface{}

// TransactionManager define quem sabe iniciar/comitar transações (UoW).
// Cada escrita terminal da saga roda num Run separado; esperas de rede nunca ficam dentro dele.
type TransactionManager interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionKeyType evita colisão de chaves no contexto
type TransactionKeyType string

const TransactionKey TransactionKeyType = "transaction"

var ErrNoTransactionInContext = errors.New("transaction not found in context")

// TxFromContext recupera a transação injetada pelo TransactionManager.Run.
func TxFromContext(ctx context.Context) (TransactionObject, error) {
	tx := ctx.Value(TransactionKey)
	if tx == nil {
		return nil, ErrNoTransactionInContext
	}
	return tx, nil
}
