package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// settler fecha transações PENDING. Cada chamada é uma unidade de trabalho própria,
// chaveada pela chave de idempotência e com a linha travada (FOR UPDATE): saga e
// reconciliação podem disputar o mesmo registro e só o primeiro decide.
type settler struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager
	balances              *balanceUpdater
	eventPublisher        gateway.EventPublisher
}

func newSettler(
	repo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	publisher gateway.EventPublisher,
) *settler {
	return &settler{
		transactionRepository: repo,
		transactionManager:    txManager,
		balances:              newBalanceUpdater(ledger),
		eventPublisher:        publisher,
	}
}

// settleOutcome descreve como fechar o registro.
type settleOutcome struct {
	status          domain.Status
	reason          string
	reasonCode      string
	correlationCode string
	compensate      bool // devolve o débito da origem (saídas que falharam)
}

// errCorrelationTaken: o código de correlação do switch já pertence a outro registro.
var errCorrelationTaken = errors.New("correlation code already assigned to another transaction")

// settle aplica o desfecho se o registro ainda estiver PENDING. O bool indica se esta
// chamada fez a transição (false = outro processo já tinha resolvido).
// Um código de correlação repetido não impede o fechamento: o registro fecha sem ele.
func (s *settler) settle(ctx context.Context, key string, outcome settleOutcome) (*domain.Transaction, bool, error) {
	settled, changed, err := s.apply(ctx, key, outcome)
	if errors.Is(err, errCorrelationTaken) {
		log.Warn().Err(err).Str("reference", key).Str("correlation_code", outcome.correlationCode).
			Msg("Código de correlação já usado por outra transação, fechando sem ele")
		outcome.correlationCode = ""
		settled, changed, err = s.apply(ctx, key, outcome)
	}
	if err != nil {
		return nil, false, err
	}

	if changed && outcome.status != domain.StatusPending {
		publishSettlement(ctx, s.eventPublisher, settled)
	}
	return settled, changed, nil
}

// apply roda um Uow. A compensação no ledger é desfeita se o Uow não commitar.
func (s *settler) apply(ctx context.Context, key string, outcome settleOutcome) (*domain.Transaction, bool, error) {
	var (
		settled *domain.Transaction
		changed bool
		moves   []ledgerMove
	)

	err := s.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		repoTx, err := repoFromContext(contextWithTx, s.transactionRepository)
		if err != nil {
			return err
		}

		current, err := repoTx.GetByIdempotencyKeyForUpdate(contextWithTx, key)
		if err != nil {
			return fmt.Errorf("falha ao travar transação %s: %w", key, err)
		}
		settled = current

		if current.Status != domain.StatusPending {
			return nil
		}

		newCorrelation := outcome.correlationCode != "" && current.CorrelationCode == nil
		if newCorrelation {
			current.CorrelationCode = domain.StringPtr(outcome.correlationCode)
		}
		if outcome.reasonCode != "" {
			current.ReasonCode = domain.StringPtr(outcome.reasonCode)
		}
		if outcome.reason != "" {
			current.Description = appendNote(current.Description, outcome.reason)
		}

		if outcome.compensate && current.OperationType == domain.OperationOutboundTransfer && current.OriginAccountID != nil {
			origin := *current.OriginAccountID
			if err := lockAccounts(contextWithTx, repoTx, origin); err != nil {
				return err
			}
			newBalance, err := s.balances.Credit(contextWithTx, origin, current.Amount)
			if err != nil {
				return fmt.Errorf("%w: compensation failed for %s: %v", domain.ErrPeerCommunication, key, err)
			}
			moves = append(moves, ledgerMove{accountID: origin, amount: current.Amount, credit: true})
			current.ResultingBalance = decimal.NewNullDecimal(newBalance)
		}

		if outcome.status != domain.StatusPending {
			if err := current.TransitionTo(outcome.status); err != nil {
				return err
			}
		}

		if err := repoTx.Update(contextWithTx, current); err != nil {
			if newCorrelation && errors.Is(err, domain.ErrDuplicateRequest) {
				return fmt.Errorf("%w: %s", errCorrelationTaken, outcome.correlationCode)
			}
			return fmt.Errorf("falha ao atualizar transação %s: %w", key, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		s.balances.revert(ctx, key, moves...)
		return nil, false, err
	}

	if len(moves) > 0 {
		log.Warn().Str("reference", key).Int64("account", moves[0].accountID).Str("amount", moves[0].amount.String()).
			Msg("Compensação aplicada: valor devolvido à conta de origem")
	}
	return settled, changed, nil
}

func (s *settler) complete(ctx context.Context, key, correlationCode string) (*domain.Transaction, error) {
	t, _, err := s.settle(ctx, key, settleOutcome{status: domain.StatusCompleted, correlationCode: correlationCode})
	return t, err
}

// fail marca FAILED e, para saídas, devolve o débito. cause alimenta a métrica de compensação.
func (s *settler) fail(ctx context.Context, key, reason, reasonCode, cause string) (*domain.Transaction, error) {
	t, changed, err := s.settle(ctx, key, settleOutcome{
		status:     domain.StatusFailed,
		reason:     reason,
		reasonCode: reasonCode,
		compensate: true,
	})
	if err == nil && changed && t.OperationType == domain.OperationOutboundTransfer {
		metrics.SagaCompensations.WithLabelValues(cause).Inc()
	}
	return t, err
}

// annotate deixa uma nota num registro que continua PENDING.
func (s *settler) annotate(ctx context.Context, key, note, correlationCode string) (*domain.Transaction, error) {
	t, _, err := s.settle(ctx, key, settleOutcome{status: domain.StatusPending, reason: note, correlationCode: correlationCode})
	return t, err
}

func appendNote(description, note string) string {
	if description == "" {
		return note
	}
	return description + " | " + note
}

// isTolerableRefundError: o switch pode nunca ter registrado a instrução original.
func isTolerableRefundError(err error) bool {
	var peerErr *domain.PeerError
	if !errors.As(err, &peerErr) {
		return false
	}
	if peerErr.StatusCode == 409 || peerErr.StatusCode == 404 {
		return true
	}
	return containsAnyFold(peerErr.Body, "not found", "no encontrada")
}
