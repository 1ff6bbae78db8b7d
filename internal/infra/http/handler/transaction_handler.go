package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type TransactionCreator interface {
	Execute(ctx context.Context, input usecase.CreateTransactionInput) (*usecase.TransactionOutput, error)
}

type TransactionFinder interface {
	ByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error)
}

type ReversalRequester interface {
	Execute(ctx context.Context, input usecase.ReversalInput) (*usecase.TransactionOutput, error)
}

type AccountValidator interface {
	Execute(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error)
	LookupLocal(ctx context.Context, accountNumber string) (*domain.AccountLookup, error)
}

type ReferenceDirectory interface {
	RejectionReasons(ctx context.Context) []domain.RejectionReason
	Banks(ctx context.Context) []domain.Bank
	Health(ctx context.Context) map[string]any
}

// TransactionHandler expõe as operações do cliente via HTTP
type TransactionHandler struct {
	create    TransactionCreator
	find      TransactionFinder
	reversal  ReversalRequester
	accounts  AccountValidator
	directory ReferenceDirectory
}

func NewTransactionHandler(
	create TransactionCreator,
	find TransactionFinder,
	reversal ReversalRequester,
	accounts AccountValidator,
	directory ReferenceDirectory,
) *TransactionHandler {
	return &TransactionHandler{
		create:    create,
		find:      find,
		reversal:  reversal,
		accounts:  accounts,
		directory: directory,
	}
}

type CreateTransactionRequest struct {
	OperationType        string          `json:"operationType" validate:"required"`
	OriginAccountID      *int64          `json:"originAccountId" validate:"omitempty,gt=0"`
	DestinationAccountID *int64          `json:"destinationAccountId" validate:"omitempty,gt=0"`
	ExternalAccount      string          `json:"externalAccount" validate:"max=34"`
	ExternalBankID       string          `json:"externalBankId" validate:"max=20"`
	BeneficiaryName      string          `json:"beneficiaryName" validate:"max=140"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description" validate:"max=255"`
	Reference            string          `json:"reference" validate:"max=64"`
}

type TransactionEnvelope struct {
	Transaction TransactionResponse `json:"transaction"`
	Duplicate   bool                `json:"duplicate,omitempty"`
	Processing  bool                `json:"processing,omitempty"`
}

// Create atende depósitos, saques, transferências internas e para outros bancos.
// 201 criada, 200 replay da mesma chave, 202 aguardando confirmação do switch.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// O header tem precedência: é a mesma chave usada pelo cache de idempotência
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(req.Reference)
	}

	output, err := h.create.Execute(r.Context(), usecase.CreateTransactionInput{
		OperationType:        domain.OperationType(strings.ToUpper(strings.TrimSpace(req.OperationType))),
		OriginAccountID:      req.OriginAccountID,
		DestinationAccountID: req.DestinationAccountID,
		ExternalAccount:      strings.TrimSpace(req.ExternalAccount),
		ExternalBankID:       strings.ToUpper(strings.TrimSpace(req.ExternalBankID)),
		BeneficiaryName:      req.BeneficiaryName,
		Amount:               req.Amount,
		Description:          req.Description,
		IdempotencyKey:       key,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	switch {
	case output.Duplicate:
		status = http.StatusOK
	case output.Processing:
		status = http.StatusAccepted
	}
	respondJSON(w, status, TransactionEnvelope{
		Transaction: toTransactionResponse(output.Transaction),
		Duplicate:   output.Duplicate,
		Processing:  output.Processing,
	})
}

func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, domain.ValidationError("invalid account id"))
		return
	}

	transactions, err := h.find.ByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]TransactionResponse, 0, len(transactions))
	for i := range transactions {
		resp = append(resp, toTransactionResponse(&transactions[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TransactionHandler) Search(w http.ResponseWriter, r *http.Request) {
	transaction, err := h.find.ByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(transaction))
}

type ReversalRequest struct {
	TransactionID   int64  `json:"transactionId" validate:"required_without=CorrelationCode"`
	CorrelationCode string `json:"correlationCode" validate:"required_without=TransactionID"`
	ReasonCode      string `json:"reasonCode" validate:"max=40"`
	Description     string `json:"description" validate:"max=255"`
}

func (h *TransactionHandler) Reversal(w http.ResponseWriter, r *http.Request) {
	var req ReversalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	output, err := h.reversal.Execute(r.Context(), usecase.ReversalInput{
		TransactionID:   req.TransactionID,
		CorrelationCode: strings.TrimSpace(req.CorrelationCode),
		ReasonCode:      req.ReasonCode,
		Description:     req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, TransactionEnvelope{Transaction: toTransactionResponse(output.Transaction)})
}

func (h *TransactionHandler) ReturnReasons(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.directory.RejectionReasons(r.Context()))
}

type ValidateExternalRequest struct {
	TargetBankID        string `json:"targetBankId"`
	TargetAccountNumber string `json:"targetAccountNumber" validate:"required"`
}

type AccountLookupResponse struct {
	Status string                `json:"status"`
	Data   *domain.AccountLookup `json:"data"`
}

func lookupResponse(lookup *domain.AccountLookup) AccountLookupResponse {
	status := "SUCCESS"
	if !lookup.Exists {
		status = "FAILED"
	}
	return AccountLookupResponse{Status: status, Data: lookup}
}

func (h *TransactionHandler) ValidateExternal(w http.ResponseWriter, r *http.Request) {
	var req ValidateExternalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	lookup, err := h.accounts.Execute(r.Context(), strings.TrimSpace(req.TargetBankID), strings.TrimSpace(req.TargetAccountNumber))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lookupResponse(lookup))
}
