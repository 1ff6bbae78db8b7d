package message

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Erros citam o nome do campo no JSON, que é o que o switch conhece
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return domain.ValidationError("%v", err)
	}
	problems := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return domain.ValidationError("incomplete message: %s", strings.Join(problems, ", "))
}

type Amount struct {
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Value    decimal.Decimal `json:"value"`
}

type Party struct {
	Name         string `json:"name"`
	AccountID    string `json:"accountId" validate:"required"`
	AccountType  string `json:"accountType"`
	BankID       string `json:"bankId"`
	TargetBankID string `json:"targetBankId"`
}

// TransferMessage é uma transferência recebida (pacs.008), pelo webhook ou pela fila.
type TransferMessage struct {
	Header gateway.MessageHeader `json:"header"`
	Body   struct {
		InstructionID         string `json:"instructionId" validate:"required"`
		EndToEndID            string `json:"endToEndId"`
		Amount                Amount `json:"amount"`
		Debtor                Party  `json:"debtor" validate:"-"`
		Creditor              Party  `json:"creditor"`
		RemittanceInformation string `json:"remittanceInformation"`
	} `json:"body"`
}

func (e *Envelope) Transfer() (*TransferMessage, error) {
	var m TransferMessage
	if err := e.decode(&m); err != nil {
		return nil, err
	}
	if !m.Body.Amount.Value.IsPositive() {
		return nil, domain.ValidationError("incomplete message: body.amount.value must be positive")
	}
	return &m, nil
}

func (m *TransferMessage) Input() usecase.InboundTransferInput {
	return usecase.InboundTransferInput{
		InstructionID:            m.Body.InstructionID,
		MessageID:                m.Header.MessageID,
		DestinationAccountNumber: m.Body.Creditor.AccountID,
		Amount:                   m.Body.Amount.Value,
		OriginBankID:             firstNonEmpty(m.Header.OriginatingBankID, m.Body.Debtor.BankID),
		DebtorName:               m.Body.Debtor.Name,
		Description:              m.Body.RemittanceInformation,
	}
}

// ReturnMessage é uma devolução (pacs.004).
type ReturnMessage struct {
	Header gateway.MessageHeader `json:"header"`
	Body   struct {
		ReturnInstructionID   string `json:"returnInstructionId" validate:"required"`
		OriginalInstructionID string `json:"originalInstructionId" validate:"required"`
		ReturnReason          string `json:"returnReason"`
		ReturnAmount          Amount `json:"returnAmount"`
	} `json:"body"`
}

func (e *Envelope) Return() (*ReturnMessage, error) {
	var m ReturnMessage
	if err := e.decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *ReturnMessage) Input() usecase.InboundReturnInput {
	return usecase.InboundReturnInput{
		ReturnInstructionID:   m.Body.ReturnInstructionID,
		OriginalInstructionID: m.Body.OriginalInstructionID,
		OriginatingBankID:     m.Header.OriginatingBankID,
		ReasonCode:            m.Body.ReturnReason,
		Amount:                m.Body.ReturnAmount.Value,
		CreationDateTime:      m.Header.CreationDateTime,
	}
}

// AccountInquiry é a consulta acmt.023: "esta conta existe aqui?".
type AccountInquiry struct {
	Header gateway.MessageHeader `json:"header"`
	Body   struct {
		Creditor Party `json:"creditor"`
	} `json:"body"`
}

func (e *Envelope) Inquiry() (*AccountInquiry, error) {
	var m AccountInquiry
	if err := e.decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
