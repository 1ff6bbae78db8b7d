package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	StatusReportCompleted = "COMPLETED"
	StatusReportRejected  = "REJECTED"
)

// TransferInstructionUseCase processa instruções que chegam pela fila do banco
// e devolve o resultado ao switch num callback (status report).
type TransferInstructionUseCase struct {
	inbound  *InboundTransferUseCase
	peer     gateway.SwitchPeer
	bankCode string
	now      func() time.Time
}

func NewTransferInstruction(inbound *InboundTransferUseCase, peer gateway.SwitchPeer, bankCode string) *TransferInstructionUseCase {
	return &TransferInstructionUseCase{inbound: inbound, peer: peer, bankCode: bankCode, now: time.Now}
}

// Execute devolve o erro original em recusas de negócio (quem consome descarta a mensagem)
// e um erro técnico quando vale reentregar. Reentrega é segura: o crédito é idempotente.
func (u *TransferInstructionUseCase) Execute(ctx context.Context, input InboundTransferInput) (*InboundResult, error) {
	result, err := u.inbound.Execute(ctx, input)
	if err != nil && !domain.IsBusinessError(err) {
		return nil, err
	}

	if err != nil {
		code := rejectionCode(err)
		log.Warn().Err(err).Str("instruction_id", input.InstructionID).Str("reason_code", code).Msg("Instrução recusada")
		if reportErr := u.report(ctx, input, StatusReportRejected, code, err.Error()); reportErr != nil {
			log.Error().Err(reportErr).Str("instruction_id", input.InstructionID).Msg("Falha ao enviar status REJECTED ao switch")
		}
		return nil, err
	}

	if reportErr := u.report(ctx, input, StatusReportCompleted, "", ""); reportErr != nil {
		return result, fmt.Errorf("falha ao confirmar instrução %s ao switch: %w", input.InstructionID, reportErr)
	}
	return result, nil
}

func (u *TransferInstructionUseCase) report(ctx context.Context, input InboundTransferInput, status, code, description string) error {
	var report gateway.StatusReport
	report.Header = gateway.MessageHeader{
		MessageID:         "RESP-" + uuid.NewString(),
		CreationDateTime:  u.now().UTC().Format(time.RFC3339),
		RespondingBankID:  u.bankCode,
		OriginatingBankID: input.OriginBankID,
	}
	report.Body.OriginalInstructionID = input.InstructionID
	report.Body.OriginalMessageID = input.MessageID
	report.Body.Status = status
	report.Body.ReasonCode = code
	report.Body.ReasonDescription = domain.TruncateReason(description)
	report.Body.ProcessedDateTime = u.now().UTC().Format(time.RFC3339)
	return u.peer.SendStatusReport(ctx, report)
}

func rejectionCode(err error) string {
	if code := domain.ReasonCodeOf(err); code != "" {
		return code
	}
	if strings.Contains(strings.ToUpper(err.Error()), "AC01") {
		return "AC01"
	}
	return domain.DefaultISOReason
}
