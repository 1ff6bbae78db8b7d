package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/message"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/rs/zerolog/log"
)

// InstructionProcessor é o use case que aplica a instrução e reporta o status ao switch.
type InstructionProcessor interface {
	Execute(ctx context.Context, input usecase.InboundTransferInput) (*usecase.InboundResult, error)
}

// ReturnProcessor aplica devoluções que chegam pela mesma fila.
type ReturnProcessor interface {
	Execute(ctx context.Context, input usecase.InboundReturnInput) (*usecase.InboundResult, error)
}

// NewInstructionHandler trata a fila q.bank.<CODE>.in. Transferências vão para o
// processor com status report; devoluções são aplicadas direto; o resto é descartado.
func NewInstructionHandler(classifier *message.Classifier, transfers InstructionProcessor, returns ReturnProcessor) Handler {
	return func(ctx context.Context, body []byte) error {
		envelope, err := message.Parse(body)
		if err != nil {
			return err
		}

		switch kind := classifier.Classify(envelope); kind {
		case message.KindTransfer:
			msg, err := envelope.Transfer()
			if err != nil {
				return err
			}
			result, err := transfers.Execute(ctx, msg.Input())
			if err != nil {
				return err
			}
			log.Info().Str("instruction_id", msg.Body.InstructionID).Bool("duplicate", result.Duplicate).
				Msg("Instrução de transferência processada")
			return nil
		case message.KindReturn:
			if returns == nil {
				return fmt.Errorf("%w: returns are not consumed from this queue", domain.ErrUnrecognizedEnvelope)
			}
			msg, err := envelope.Return()
			if err != nil {
				return err
			}
			_, err = returns.Execute(ctx, msg.Input())
			return err
		default:
			return fmt.Errorf("%w: %s on instruction queue", domain.ErrUnrecognizedEnvelope, kind)
		}
	}
}

// NewAuditHandler grava cada evento de liquidação no Mongo.
// JSON inválido é erro de negócio (descarta); falha do Mongo é técnica (retry).
func NewAuditHandler(repo gateway.AuditRepository) Handler {
	return func(ctx context.Context, body []byte) error {
		var event gateway.SettlementEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return domain.ValidationError("invalid settlement event: %v", err)
		}
		if err := repo.Save(ctx, event); err != nil {
			return err
		}
		log.Debug().Int64("transaction_id", event.TransactionID).Str("status", event.Status).Msg("Evento salvo na auditoria")
		return nil
	}
}
