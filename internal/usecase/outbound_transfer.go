package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OutboundTransferInput define os dados de uma transferência para outro banco.
type OutboundTransferInput struct {
	OriginAccountID int64
	ExternalAccount string
	ExternalBankID  string
	BeneficiaryName string
	Amount          decimal.Decimal
	Description     string
	IdempotencyKey  string // vazio = gerado pelo sistema
}

// TransactionOutput é o que devolvemos para quem chamou.
type TransactionOutput struct {
	Transaction *domain.Transaction
	Duplicate   bool // replay de uma chave já conhecida
	Processing  bool // sem confirmação do switch ainda; a reconciliação resolve depois
}

// PollingPolicy controla a espera pela confirmação do switch.
type PollingPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

var DefaultPollingPolicy = PollingPolicy{Interval: 1500 * time.Millisecond, MaxAttempts: 10}

// OutboundTransferUseCase é a saga: débito local -> switch -> confirmação -> compensação.
type OutboundTransferUseCase struct {
	transactionRepository gateway.TransactionRepository
	transactionManager    gateway.TransactionManager
	ledger                gateway.LedgerClient
	peer                  gateway.SwitchPeer
	eventPublisher        gateway.EventPublisher
	balances              *balanceUpdater
	settler               *settler
	bankCode              string
	policy                PollingPolicy
	sleep                 func(ctx context.Context, d time.Duration) error
	now                   func() time.Time
}

func NewOutboundTransfer(
	transactionRepo gateway.TransactionRepository,
	txManager gateway.TransactionManager,
	ledger gateway.LedgerClient,
	peer gateway.SwitchPeer,
	publisher gateway.EventPublisher,
	bankCode string,
	policy PollingPolicy,
) *OutboundTransferUseCase {
	if policy.MaxAttempts < 1 {
		policy = DefaultPollingPolicy
	}
	return &OutboundTransferUseCase{
		transactionRepository: transactionRepo,
		transactionManager:    txManager,
		ledger:                ledger,
		peer:                  peer,
		eventPublisher:        publisher,
		balances:              newBalanceUpdater(ledger),
		settler:               newSettler(transactionRepo, txManager, ledger, publisher),
		bankCode:              bankCode,
		policy:                policy,
		sleep:                 sleepContext,
		now:                   time.Now,
	}
}

func (in OutboundTransferInput) validate() error {
	if in.OriginAccountID <= 0 {
		return domain.ValidationError("origin account is required")
	}
	if strings.TrimSpace(in.ExternalAccount) == "" {
		return domain.ValidationError("destination account is required")
	}
	if strings.TrimSpace(in.ExternalBankID) == "" {
		return domain.ValidationError("destination bank is required")
	}
	if !in.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}

// Execute roda a saga completa. Só o débito + registro PENDING ficam dentro do Uow;
// chamada ao switch e polling acontecem fora de qualquer transação do banco.
func (u *OutboundTransferUseCase) Execute(ctx context.Context, input OutboundTransferInput) (*TransactionOutput, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if strings.EqualFold(input.ExternalBankID, u.bankCode) {
		return nil, domain.ValidationError("destination bank %s is this bank, use an internal transfer", input.ExternalBankID)
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	account, err := u.ledger.GetAccount(ctx, input.OriginAccountID)
	if err != nil {
		return nil, fmt.Errorf("falha ao resolver conta de origem %d: %w", input.OriginAccountID, err)
	}

	record, duplicate, err := u.debitAndRegister(ctx, key, input)
	if err != nil {
		return nil, err
	}
	if duplicate {
		log.Info().Str("reference", key).Msg("Transferência já registrada, devolvendo resultado existente")
		return &TransactionOutput{Transaction: record, Duplicate: true}, nil
	}

	// Daqui pra frente o débito está comitado: a saga não pode ser abortada pelo cliente.
	sagaCtx := context.WithoutCancel(ctx)

	request := u.buildTransferRequest(key, account, input)
	response, err := u.peer.InitiateTransfer(sagaCtx, request)
	if err != nil {
		log.Error().Err(err).Str("reference", key).Msg("Falha técnica ao iniciar transferência no switch")
		return u.compensate(sagaCtx, record, err.Error(), "peer_error", false)
	}

	correlationCode := ""
	if response.Data != nil {
		correlationCode = response.Data.CorrelationCode
	}

	if !response.Success {
		log.Warn().Str("reference", key).Str("error", response.ErrorMessage()).Msg("Switch rejeitou a transferência")
		return u.compensate(sagaCtx, record, response.ErrorMessage(), "peer_rejected", true)
	}

	switch domain.ClassifyPeerStatus(response.Status()) {
	case domain.PeerOutcomeCompleted:
		// Confirmação imediata: sem polling
		done, err := u.settler.complete(sagaCtx, key, correlationCode)
		if err != nil {
			return nil, err
		}
		return &TransactionOutput{Transaction: done}, nil
	case domain.PeerOutcomeFailed:
		return u.compensate(sagaCtx, record, response.ErrorMessage()+" "+response.Status(), "peer_rejected", true)
	}

	outcome, last := u.pollStatus(sagaCtx, key)
	if last != nil && last.Data != nil && last.Data.CorrelationCode != "" {
		correlationCode = last.Data.CorrelationCode
	}

	switch {
	case outcome.IsSuccess():
		done, err := u.settler.complete(sagaCtx, key, correlationCode)
		if err != nil {
			return nil, err
		}
		return &TransactionOutput{Transaction: done}, nil
	case outcome == domain.PeerOutcomeFailed:
		raw := last.ErrorMessage()
		if raw == "" {
			raw = "rejected by destination: " + last.Status()
		}
		return u.compensate(sagaCtx, record, raw, "poll_rejected", true)
	}

	log.Warn().Str("reference", key).Int("attempts", u.policy.MaxAttempts).
		Msg("Sem confirmação do switch, transação fica PENDING para reconciliação")
	pending, err := u.settler.annotate(sagaCtx, key, domain.ReasonPendingConfirmation, correlationCode)
	if err != nil {
		return nil, err
	}
	return &TransactionOutput{Transaction: pending, Processing: true}, nil
}

// debitAndRegister: lock da chave, dedup, débito e registro PENDING no mesmo Uow.
func (u *OutboundTransferUseCase) debitAndRegister(ctx context.Context, key string, input OutboundTransferInput) (*domain.Transaction, bool, error) {
	var (
		record    *domain.Transaction
		duplicate bool
		debited   bool
	)

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		repoTx, err := repoFromContext(contextWithTx, u.transactionRepository)
		if err != nil {
			return err
		}
		if err := repoTx.LockKey(contextWithTx, key); err != nil {
			return err
		}

		existing, err := repoTx.GetByIdempotencyKey(contextWithTx, key)
		if err == nil {
			record, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		if err := lockAccounts(contextWithTx, repoTx, input.OriginAccountID); err != nil {
			return err
		}
		newBalance, err := u.balances.Debit(contextWithTx, input.OriginAccountID, input.Amount)
		if err != nil {
			return fmt.Errorf("falha no débito (origem %d): %w", input.OriginAccountID, err)
		}
		debited = true

		record = &domain.Transaction{
			IdempotencyKey:   key,
			OperationType:    domain.OperationOutboundTransfer,
			OriginAccountID:  domain.Int64Ptr(input.OriginAccountID),
			ExternalAccount:  domain.StringPtr(input.ExternalAccount),
			ExternalBankID:   domain.StringPtr(strings.ToUpper(input.ExternalBankID)),
			Amount:           input.Amount,
			ResultingBalance: decimal.NewNullDecimal(newBalance),
			Description:      input.Description,
			Status:           domain.StatusPending,
		}
		return repoTx.Create(contextWithTx, record)
	})

	if err != nil {
		if debited {
			// Commit falhou depois do débito: devolve o valor antes de reportar
			if _, creditErr := u.balances.Credit(context.WithoutCancel(ctx), input.OriginAccountID, input.Amount); creditErr != nil {
				log.Error().Err(creditErr).Str("reference", key).Msg("Falha ao desfazer débito após erro de registro")
			}
		}
		if errors.Is(err, domain.ErrDuplicateRequest) {
			existing, getErr := u.transactionRepository.GetByIdempotencyKey(ctx, key)
			if getErr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}
	return record, duplicate, nil
}

func (u *OutboundTransferUseCase) pollStatus(ctx context.Context, key string) (domain.PeerOutcome, *gateway.SwitchResponse) {
	var last *gateway.SwitchResponse
	attempts := 0
	defer func() { metrics.SagaPollAttempts.Observe(float64(attempts)) }()

	for attempts < u.policy.MaxAttempts {
		if err := u.sleep(ctx, u.policy.Interval); err != nil {
			return domain.PeerOutcomeUnknown, last
		}
		attempts++

		response, err := u.peer.QueryStatus(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("reference", key).Int("attempt", attempts).Msg("Falha ao consultar status no switch")
			continue
		}
		last = response

		outcome := domain.ClassifyPeerStatus(response.Status())
		log.Debug().Str("reference", key).Int("attempt", attempts).Str("status", response.Status()).Msg("Polling de status")
		if outcome != domain.PeerOutcomeUnknown {
			return outcome, response
		}
	}
	return domain.PeerOutcomeUnknown, last
}

// compensate: refund best-effort no switch, crédito de volta na origem e FAILED.
// signal=true devolve também um erro PeerRejected para quem chamou.
func (u *OutboundTransferUseCase) compensate(ctx context.Context, record *domain.Transaction, raw, cause string, signal bool) (*TransactionOutput, error) {
	reason := domain.FriendlyReason(raw)
	code := domain.ExtractISOCode(raw)

	u.requestCompensatingRefund(ctx, record)

	failed, err := u.settler.fail(ctx, record.IdempotencyKey, reason, code, cause)
	if err != nil {
		log.Error().Err(err).Str("reference", record.IdempotencyKey).Msg("Compensação falhou, transação fica PENDING")
		return nil, fmt.Errorf("%w: compensation of %s not committed", domain.ErrPeerCommunication, record.IdempotencyKey)
	}

	output := &TransactionOutput{Transaction: failed}
	if signal && failed.Status == domain.StatusFailed {
		return output, domain.Reject(domain.ErrPeerRejected, code, reason)
	}
	return output, nil
}

func (u *OutboundTransferUseCase) requestCompensatingRefund(ctx context.Context, record *domain.Transaction) {
	request := newRefundRequest(u.bankCode, uuid.NewString(), record.IdempotencyKey, domain.DefaultISOReason, record.Amount, u.now())

	response, err := u.peer.RequestRefund(ctx, request)
	switch {
	case err != nil && isTolerableRefundError(err):
		log.Info().Str("reference", record.IdempotencyKey).Msg("Switch não conhece a instrução original, refund ignorado")
	case err != nil:
		log.Warn().Err(err).Str("reference", record.IdempotencyKey).Msg("Refund compensatório falhou (best-effort)")
	case !response.Success:
		log.Warn().Str("reference", record.IdempotencyKey).Str("error", response.ErrorMessage()).Msg("Switch recusou refund compensatório")
	default:
		log.Info().Str("reference", record.IdempotencyKey).Msg("Refund compensatório enviado ao switch")
	}
}

func (u *OutboundTransferUseCase) buildTransferRequest(key string, origin *domain.Account, input OutboundTransferInput) gateway.TransferRequest {
	now := u.now().UTC()

	var request gateway.TransferRequest
	request.Header = gateway.MessageHeader{
		MessageID:         newMessageID(u.bankCode),
		CreationDateTime:  now.Format(time.RFC3339),
		OriginatingBankID: u.bankCode,
	}
	request.Body.InstructionID = key
	request.Body.EndToEndID = "REF-" + u.bankCode + "-" + key
	request.Body.Amount = gateway.Money{Currency: domain.DefaultCurrency, Value: input.Amount}
	request.Body.Debtor = gateway.Party{
		Name:        firstNonEmpty(origin.OwnerName, u.bankCode+" customer"),
		AccountID:   origin.AccountNumber,
		AccountType: "SAVINGS",
		BankID:      u.bankCode,
	}
	request.Body.Creditor = gateway.Party{
		Name:         firstNonEmpty(input.BeneficiaryName, "Beneficiary"),
		AccountID:    input.ExternalAccount,
		AccountType:  "SAVINGS",
		TargetBankID: strings.ToUpper(input.ExternalBankID),
	}
	request.Body.RemittanceInformation = firstNonEmpty(input.Description, "Interbank transfer")
	return request
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
