package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/message"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	ackStatus  = "ACK"
	nackStatus = "NACK"
)

type InboundTransferProcessor interface {
	Execute(ctx context.Context, input usecase.InboundTransferInput) (*usecase.InboundResult, error)
}

type InboundReturnProcessor interface {
	Execute(ctx context.Context, input usecase.InboundReturnInput) (*usecase.InboundResult, error)
}

type StatusQuerier interface {
	QueryStatus(ctx context.Context, instructionID string) (*usecase.TransferStatusOutput, error)
}

// WebhookHandler recebe as notificações do switch: transferências, devoluções e consultas de conta.
type WebhookHandler struct {
	classifier *message.Classifier
	transfers  InboundTransferProcessor
	returns    InboundReturnProcessor
	accounts   AccountValidator
	status     StatusQuerier
}

func NewWebhookHandler(
	classifier *message.Classifier,
	transfers InboundTransferProcessor,
	returns InboundReturnProcessor,
	accounts AccountValidator,
	status StatusQuerier,
) *WebhookHandler {
	return &WebhookHandler{
		classifier: classifier,
		transfers:  transfers,
		returns:    returns,
		accounts:   accounts,
		status:     status,
	}
}

type WebhookAck struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	InstructionID string `json:"instructionId,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

type WebhookNack struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

// Receive é o ponto único de entrada: o classificador decide o fluxo pela estrutura do payload.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.parse(w, r)
	if !ok {
		return
	}

	kind := h.classifier.Classify(envelope)
	logger := log.With().Str("kind", string(kind)).Str("message_id", envelope.Header.MessageID).Logger()
	logger.Info().Msg("Notificação recebida do switch")

	switch kind {
	case message.KindTransfer:
		h.handleTransfer(w, r, envelope)
	case message.KindReturn:
		h.handleReturn(w, r, envelope)
	case message.KindAccountInquiry:
		h.handleInquiry(w, r, envelope)
	default:
		metrics.InboundTotal.WithLabelValues("unknown", "unrecognized").Inc()
		logger.Warn().Msg("Formato de mensagem não reconhecido")
		respondJSON(w, http.StatusBadRequest, WebhookNack{Status: nackStatus, Error: domain.ErrUnrecognizedEnvelope.Error()})
	}
}

// ReceiveReturn atende a rota dedicada de devoluções sem passar pelo classificador.
func (h *WebhookHandler) ReceiveReturn(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.parse(w, r)
	if !ok {
		return
	}
	h.handleReturn(w, r, envelope)
}

// Status responde a consulta de uma instrução recebida.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	output, err := h.status.QueryStatus(r.Context(), chi.URLParam(r, "instructionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"instructionId": output.InstructionID,
		"status":        output.Status,
	}
	if output.Transaction != nil {
		resp["transaction"] = toTransactionResponse(output.Transaction)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *WebhookHandler) parse(w http.ResponseWriter, r *http.Request) (*message.Envelope, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, WebhookNack{Status: nackStatus, Error: "failed to read body"})
		return nil, false
	}
	envelope, err := message.Parse(body)
	if err != nil {
		metrics.InboundTotal.WithLabelValues("unknown", "malformed").Inc()
		respondJSON(w, http.StatusBadRequest, WebhookNack{Status: nackStatus, Error: err.Error()})
		return nil, false
	}
	return envelope, true
}

func (h *WebhookHandler) handleTransfer(w http.ResponseWriter, r *http.Request, envelope *message.Envelope) {
	msg, err := envelope.Transfer()
	if err != nil {
		h.nack(w, err)
		return
	}

	result, err := h.transfers.Execute(r.Context(), msg.Input())
	if err != nil {
		h.nack(w, err)
		return
	}

	text := "transfer credited"
	if result.Duplicate {
		text = "transfer already processed"
	}
	respondJSON(w, http.StatusOK, WebhookAck{
		Status:        ackStatus,
		Message:       text,
		InstructionID: msg.Body.InstructionID,
		Duplicate:     result.Duplicate,
	})
}

func (h *WebhookHandler) handleReturn(w http.ResponseWriter, r *http.Request, envelope *message.Envelope) {
	msg, err := envelope.Return()
	if err != nil {
		h.nack(w, err)
		return
	}

	result, err := h.returns.Execute(r.Context(), msg.Input())
	if err != nil {
		h.nack(w, err)
		return
	}

	text := "return applied"
	switch {
	case result.Duplicate:
		text = "return already processed"
	case result.Ignored:
		text = "original transaction has nothing to return"
	}
	respondJSON(w, http.StatusOK, WebhookAck{
		Status:        ackStatus,
		Message:       text,
		InstructionID: msg.Body.ReturnInstructionID,
		Duplicate:     result.Duplicate,
	})
}

func (h *WebhookHandler) handleInquiry(w http.ResponseWriter, r *http.Request, envelope *message.Envelope) {
	msg, err := envelope.Inquiry()
	if err != nil {
		h.nack(w, err)
		return
	}

	lookup, err := h.accounts.LookupLocal(r.Context(), msg.Body.Creditor.AccountID)
	if err != nil {
		h.nack(w, err)
		return
	}
	metrics.InboundTotal.WithLabelValues("inquiry", "answered").Inc()
	respondJSON(w, http.StatusOK, lookupResponse(lookup))
}

// nack: envelope incompleto 400, recusa de negócio 422 com código ISO, falha técnica 500.
func (h *WebhookHandler) nack(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnrecognizedEnvelope):
		respondJSON(w, http.StatusBadRequest, WebhookNack{Status: nackStatus, Error: err.Error()})
	case domain.IsBusinessError(err):
		log.Warn().Err(err).Msg("Notificação recusada")
		respondJSON(w, http.StatusUnprocessableEntity, WebhookNack{
			Status: nackStatus,
			Error:  err.Error(),
			Code:   domain.ReasonCodeOf(err),
		})
	default:
		log.Error().Err(err).Msg("Erro técnico ao processar notificação")
		respondJSON(w, http.StatusInternalServerError, WebhookNack{Status: nackStatus, Error: "internal error, retry later"})
	}
}
