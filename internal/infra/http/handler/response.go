package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Helpers para resposta JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Falha ao codificar resposta JSON")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor mapeia a taxonomia de erros de domínio para HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnrecognizedEnvelope):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrOriginalNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrPeerRejected),
		errors.Is(err, domain.ErrAlreadyReversed), errors.Is(err, domain.ErrCannotReverseFunds),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPeerCommunication):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError responde o erro sem vazar detalhes internos em 5xx.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Msg("Erro interno ao processar requisição")
		respondError(w, status, "", "internal server error")
	case http.StatusBadGateway:
		log.Warn().Err(err).Msg("Falha de comunicação com o switch")
		respondError(w, status, "", domain.ReasonGenericCommunication)
	default:
		respondError(w, status, domain.ReasonCodeOf(err), err.Error())
	}
}

// decodeBody lê o JSON com limite de tamanho e valida as tags.
func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.ValidationError("failed to read body: %v", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return domain.ValidationError("invalid payload: %v", err)
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return domain.ValidationError("%v", err)
		}
		problems := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
		}
		return domain.ValidationError("%s", strings.Join(problems, ", "))
	}
	return nil
}

// TransactionResponse é a visão pública de um registro de liquidação.
type TransactionResponse struct {
	ID                          int64            `json:"id"`
	Reference                   string           `json:"reference"`
	CorrelationCode             string           `json:"correlationCode,omitempty"`
	OperationType               string           `json:"operationType"`
	OriginAccountID             *int64           `json:"originAccountId,omitempty"`
	DestinationAccountID        *int64           `json:"destinationAccountId,omitempty"`
	ExternalAccount             string           `json:"externalAccount,omitempty"`
	ExternalBankID              string           `json:"externalBankId,omitempty"`
	Amount                      decimal.Decimal  `json:"amount"`
	ResultingBalance            *decimal.Decimal `json:"resultingBalance,omitempty"`
	ResultingBalanceDestination *decimal.Decimal `json:"resultingBalanceDestination,omitempty"`
	Description                 string           `json:"description,omitempty"`
	Status                      string           `json:"status"`
	ReversalOfID                *int64           `json:"reversalOfId,omitempty"`
	ReasonCode                  string           `json:"reasonCode,omitempty"`
	CreatedAt                   time.Time        `json:"createdAt"`
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                   t.ID,
		Reference:            t.IdempotencyKey,
		CorrelationCode:      domain.StringValue(t.CorrelationCode),
		OperationType:        string(t.OperationType),
		OriginAccountID:      t.OriginAccountID,
		DestinationAccountID: t.DestinationAccountID,
		ExternalAccount:      domain.StringValue(t.ExternalAccount),
		ExternalBankID:       domain.StringValue(t.ExternalBankID),
		Amount:               t.Amount,
		Description:          t.Description,
		Status:               string(t.Status),
		ReversalOfID:         t.ReversalOfID,
		ReasonCode:           domain.StringValue(t.ReasonCode),
		CreatedAt:            t.CreatedAt,
	}
	if t.ResultingBalance.Valid {
		balance := t.ResultingBalance.Decimal
		resp.ResultingBalance = &balance
	}
	if t.ResultingBalanceDestination.Valid {
		balance := t.ResultingBalanceDestination.Decimal
		resp.ResultingBalanceDestination = &balance
	}
	return resp
}
