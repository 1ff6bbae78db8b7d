package gateway

import (
	"context"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// MessageHeader é o cabeçalho comum das mensagens ISO 20022 trocadas com o switch.
type MessageHeader struct {
	MessageID         string `json:"messageId"`
	CreationDateTime  string `json:"creationDateTime"`
	OriginatingBankID string `json:"originatingBankId,omitempty"`
	RespondingBankID  string `json:"respondingBankId,omitempty"`
	MessageNamespace  string `json:"messageNamespace,omitempty"`
}

type Money struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type Party struct {
	Name         string `json:"name,omitempty"`
	AccountID    string `json:"accountId"`
	AccountType  string `json:"accountType,omitempty"`
	BankID       string `json:"bankId,omitempty"`
	TargetBankID string `json:"targetBankId,omitempty"`
}

// TransferRequest (pacs.008) enviado para iniciar uma transferência.
type TransferRequest struct {
	Header MessageHeader `json:"header"`
	Body   struct {
		InstructionID         string `json:"instructionId"`
		EndToEndID            string `json:"endToEndId"`
		Amount                Money  `json:"amount"`
		Debtor                Party  `json:"debtor"`
		Creditor              Party  `json:"creditor"`
		RemittanceInformation string `json:"remittanceInformation,omitempty"`
	} `json:"body"`
}

// RefundRequest (pacs.004) usado tanto para pedir quanto para receber devoluções.
type RefundRequest struct {
	Header MessageHeader `json:"header"`
	Body   struct {
		ReturnInstructionID   string `json:"returnInstructionId"`
		OriginalInstructionID string `json:"originalInstructionId"`
		ReturnReason          string `json:"returnReason"`
		ReturnAmount          Money  `json:"returnAmount"`
	} `json:"body"`
}

// StatusReport é o callback de resultado de uma instrução recebida pela fila.
type StatusReport struct {
	Header MessageHeader `json:"header"`
	Body   struct {
		OriginalInstructionID string `json:"originalInstructionId"`
		OriginalMessageID     string `json:"originalMessageId,omitempty"`
		Status                string `json:"status"`
		ReasonCode            string `json:"reasonCode,omitempty"`
		ReasonDescription     string `json:"reasonDescription,omitempty"`
		ProcessedDateTime     string `json:"processedDateTime"`
	} `json:"body"`
}

// SwitchResponse é o formato normalizado de resposta, já passado pelo adaptador.
type SwitchResponse struct {
	Success bool
	Data    *SwitchResponseData
	Error   *SwitchResponseError
}

type SwitchResponseData struct {
	InstructionID   string
	CorrelationCode string
	Status          string
}

type SwitchResponseError struct {
	Code    string
	Message string
}

// Status devolve o status textual (vazio quando não veio nada).
func (r *SwitchResponse) Status() string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data.Status
}

// ErrorMessage junta código e mensagem de erro para classificação.
func (r *SwitchResponse) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	if r.Error.Code == "" {
		return r.Error.Message
	}
	return r.Error.Code + " " + r.Error.Message
}

// SwitchPeer é a rede interbancária, consumida como um RPC caixa-preta.
// Falhas de transporte voltam como *domain.PeerError.
type SwitchPeer interface {
	InitiateTransfer(ctx context.Context, request TransferRequest) (*SwitchResponse, error)
	QueryStatus(ctx context.Context, instructionID string) (*SwitchResponse, error)
	RequestRefund(ctx context.Context, request RefundRequest) (*SwitchResponse, error)
	ListRejectionReasons(ctx context.Context) ([]domain.RejectionReason, error)
	LookupAccount(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error)
	SendStatusReport(ctx context.Context, report StatusReport) error
	ListBanks(ctx context.Context) ([]domain.Bank, error)
	Health(ctx context.Context) (map[string]any, error)
}
