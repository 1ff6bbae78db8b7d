package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// dbtx é o que pgxpool.Pool e pgx.Tx têm em comum
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TransactionRepository struct {
	db dbtx
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: pool}
}

const transactionColumns = `id, idempotency_key, correlation_code, operation_type, origin_account_id,
	destination_account_id, external_account, external_bank_id, amount, resulting_balance,
	resulting_balance_destination, description, status, reversal_of_id, reason_code, created_at`

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	var createdAt *time.Time
	if !t.CreatedAt.IsZero() {
		createdAt = &t.CreatedAt
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO transactions (
			idempotency_key, correlation_code, operation_type, origin_account_id, destination_account_id,
			external_account, external_bank_id, amount, resulting_balance, resulting_balance_destination,
			description, status, reversal_of_id, reason_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()))
		RETURNING id, created_at`,
		t.IdempotencyKey, t.CorrelationCode, string(t.OperationType), t.OriginAccountID, t.DestinationAccountID,
		t.ExternalAccount, t.ExternalBankID, t.Amount, t.ResultingBalance, t.ResultingBalanceDestination,
		t.Description, string(t.Status), t.ReversalOfID, t.ReasonCode, createdAt,
	)

	// Atualiza o ID e CreatedAt gerados pelo banco de volta no objeto de domínio
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return mapWriteError("create transaction", err)
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		   SET status = $2,
		       correlation_code = COALESCE($3, correlation_code),
		       reason_code = COALESCE($4, reason_code),
		       resulting_balance = $5,
		       resulting_balance_destination = $6,
		       description = $7,
		       updated_at = now()
		 WHERE id = $1`,
		t.ID, string(t.Status), t.CorrelationCode, t.ReasonCode,
		t.ResultingBalance, t.ResultingBalanceDestination, t.Description,
	)
	if err != nil {
		return mapWriteError("update transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction %d: %w", t.ID, domain.ErrTransactionNotFound)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
}

func (r *TransactionRepository) GetByCorrelationCode(ctx context.Context, code string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE correlation_code = $1`, code)
}

// GetByIdempotencyKeyForUpdate só faz sentido dentro do Uow: o lock vive até o Commit.
func (r *TransactionRepository) GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1 FOR UPDATE`, key)
}

func (r *TransactionRepository) GetReversalOf(ctx context.Context, originalID int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reversal_of_id = $1`, originalID)
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE origin_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
}

func (r *TransactionRepository) ListPendingBefore(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = 'PENDING' AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2`, createdBefore, limit)
}

// LockKey usa advisory lock de transação: entregas concorrentes da mesma chave esperam aqui.
func (r *TransactionRepository) LockKey(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to lock key %s: %w", key, err)
	}
	return nil
}

func (r *TransactionRepository) WithTx(tx gateway.TransactionObject) gateway.TransactionRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &TransactionRepository{db: pgTx}
}

func (r *TransactionRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t             domain.Transaction
		operationType string
		status        string
	)
	err := row.Scan(
		&t.ID, &t.IdempotencyKey, &t.CorrelationCode, &operationType, &t.OriginAccountID,
		&t.DestinationAccountID, &t.ExternalAccount, &t.ExternalBankID, &t.Amount, &t.ResultingBalance,
		&t.ResultingBalanceDestination, &t.Description, &status, &t.ReversalOfID, &t.ReasonCode, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.OperationType = domain.OperationType(operationType)
	t.Status = domain.Status(status)
	return &t, nil
}

// mapWriteError converte violação de unicidade (23505) em duplicata benigna.
func mapWriteError(op string, err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateRequest)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
