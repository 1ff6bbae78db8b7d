package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Status devolvido pela consulta de status de uma instrução.
const (
	TransferStatusNotFound  = "NOT_FOUND"
	TransferStatusPending   = "PENDING"
	TransferStatusCompleted = "COMPLETED"
	TransferStatusFailed    = "FAILED"
)

// ReconcilePolicy define quando um PENDING é considerado expirado.
type ReconcilePolicy struct {
	Expiration time.Duration
	Grace      time.Duration // o sweep agendado ignora registros mais novos que isso
}

var DefaultReconcilePolicy = ReconcilePolicy{Expiration: 3 * time.Minute, Grace: time.Minute}

type TransferStatusOutput struct {
	InstructionID string
	Status        string
	Transaction   *domain.Transaction
}

type SweepResult struct {
	Scanned  int
	Resolved int
	Failed   int
}

// ReconcileUseCase resolve transações PENDING sem um novo pedido do cliente.
type ReconcileUseCase struct {
	transactionRepository gateway.TransactionRepository
	peer                  gateway.SwitchPeer
	settler               *settler
	policy                ReconcilePolicy
	now                   func() time.Time
}

func NewReconcile(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	peer gateway.SwitchPeer,
	publisher gateway.EventPublisher,
	policy ReconcilePolicy,
) *ReconcileUseCase {
	if policy.Expiration <= 0 {
		policy.Expiration = DefaultReconcilePolicy.Expiration
	}
	if policy.Grace < 0 {
		policy.Grace = 0
	}
	return &ReconcileUseCase{
		transactionRepository: transactionRepo,
		peer:                  peer,
		settler:               newSettler(transactionRepo, txManager, ledger, publisher),
		policy:                policy,
		now:                   time.Now,
	}
}

// Resolve tenta fechar um PENDING: expiração primeiro (sem falar com o switch),
// depois uma única consulta de status. Sem resposta conclusiva o registro continua PENDING.
func (u *ReconcileUseCase) Resolve(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if t == nil || t.Status != domain.StatusPending {
		return t, nil
	}

	if age := t.Age(u.now()); age >= u.policy.Expiration {
		log.Warn().Str("reference", t.IdempotencyKey).Dur("age", age).Msg("Transação PENDING expirada, marcando FAILED")
		return u.finish(ctx, t, func() (*domain.Transaction, error) {
			return u.settler.fail(ctx, t.IdempotencyKey, domain.ReasonExpired, "", "expired")
		})
	}

	if t.OperationType != domain.OperationOutboundTransfer {
		return t, nil
	}

	response, err := u.peer.QueryStatus(ctx, t.IdempotencyKey)
	if err != nil {
		if domain.IsConnectionProblem(err.Error()) {
			reason := domain.ConnectionProblemReason(err.Error())
			log.Warn().Err(err).Str("reference", t.IdempotencyKey).Msg("Switch indisponível na reconciliação, marcando FAILED")
			return u.finish(ctx, t, func() (*domain.Transaction, error) {
				return u.settler.fail(ctx, t.IdempotencyKey, reason, "", "connection_problem")
			})
		}
		log.Warn().Err(err).Str("reference", t.IdempotencyKey).Msg("Consulta de status inconclusiva, mantendo PENDING")
		return t, nil
	}

	correlationCode := ""
	if response.Data != nil {
		correlationCode = response.Data.CorrelationCode
	}

	switch outcome := domain.ClassifyPeerStatus(response.Status()); {
	case outcome.IsSuccess():
		return u.finish(ctx, t, func() (*domain.Transaction, error) {
			return u.settler.complete(ctx, t.IdempotencyKey, correlationCode)
		})
	case outcome == domain.PeerOutcomeFailed:
		raw := firstNonEmpty(response.ErrorMessage(), "rejected by destination: "+response.Status())
		return u.finish(ctx, t, func() (*domain.Transaction, error) {
			return u.settler.fail(ctx, t.IdempotencyKey, domain.FriendlyReason(raw), domain.ExtractISOCode(raw), "reconcile_rejected")
		})
	}

	log.Debug().Str("reference", t.IdempotencyKey).Str("status", response.Status()).Msg("Switch ainda sem status final")
	return t, nil
}

func (u *ReconcileUseCase) finish(ctx context.Context, original *domain.Transaction, apply func() (*domain.Transaction, error)) (*domain.Transaction, error) {
	resolved, err := apply()
	if err != nil {
		return original, err
	}
	if resolved.Status != domain.StatusPending {
		metrics.ReconciledTotal.WithLabelValues(string(resolved.Status)).Inc()
	}
	return resolved, nil
}

// QueryStatus responde a consulta do switch/cliente sobre uma instrução, reconciliando se preciso.
func (u *ReconcileUseCase) QueryStatus(ctx context.Context, instructionID string) (*TransferStatusOutput, error) {
	instructionID = strings.TrimSpace(instructionID)
	if instructionID == "" {
		return nil, domain.ValidationError("instructionId is required")
	}

	t, err := u.transactionRepository.GetByIdempotencyKey(ctx, instructionID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return &TransferStatusOutput{InstructionID: instructionID, Status: TransferStatusNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if t.Status == domain.StatusPending {
		if t, err = u.Resolve(ctx, t); err != nil {
			log.Error().Err(err).Str("reference", instructionID).Msg("Falha ao reconciliar durante consulta de status")
		}
	}

	return &TransferStatusOutput{InstructionID: instructionID, Status: externalStatus(t.Status), Transaction: t}, nil
}

func externalStatus(status domain.Status) string {
	switch status {
	case domain.StatusCompleted, domain.StatusReturned:
		return TransferStatusCompleted
	case domain.StatusFailed, domain.StatusReversed:
		return TransferStatusFailed
	default:
		return TransferStatusPending
	}
}

// Sweep resolve até batch registros PENDING, mais antigos primeiro.
func (u *ReconcileUseCase) Sweep(ctx context.Context, batch int) (SweepResult, error) {
	var result SweepResult

	pending, err := u.transactionRepository.ListPendingBefore(ctx, u.now().Add(-u.policy.Grace), batch)
	if err != nil {
		return result, err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		resolved, err := u.Resolve(ctx, &pending[i])
		if err != nil {
			result.Failed++
			log.Error().Err(err).Str("reference", pending[i].IdempotencyKey).Msg("Falha ao reconciliar transação")
			continue
		}
		if resolved.Status != domain.StatusPending {
			result.Resolved++
		}
	}

	if result.Scanned > 0 {
		log.Info().Int("scanned", result.Scanned).Int("resolved", result.Resolved).Int("failed", result.Failed).
			Msg("Ciclo de reconciliação concluído")
	}
	return result, nil
}
