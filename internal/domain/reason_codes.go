package domain

import "strings"

// RejectionReason é um motivo de devolução ISO 20022.
type RejectionReason struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// DefaultRejectionReasons é usado quando o switch não responde a consulta de motivos.
var DefaultRejectionReasons = []RejectionReason{
	{Code: "AC03", Description: "Invalid creditor account number"},
	{Code: "AC06", Description: "Blocked account"},
	{Code: "AC04", Description: "Closed account"},
	{Code: "AM05", Description: "Duplicate payment"},
	{Code: "FRAD", Description: "Fraudulent origin"},
	{Code: "MS03", Description: "Technical error"},
	{Code: "AG01", Description: "Transaction forbidden"},
	{Code: "CUST", Description: "Requested by customer"},
}

const DefaultISOReason = "MS03"

var internalToISO = map[string]string{
	"TECH":               "MS03",
	"TECHNICAL":          "MS03",
	"ACCOUNT_INVALID":    "AC03",
	"ACCOUNT_MISSING":    "AC03",
	"ACCOUNT_BLOCKED":    "AC06",
	"ACCOUNT_CLOSED":     "AC04",
	"INSUFFICIENT_FUNDS": "AM04",
	"DUPLICATE":          "AM05",
	"FRAUD":              "FRAD",
	"CUSTOMER":           "CUST",
	"CUSTOMER_REQUEST":   "CUST",
	"FORBIDDEN":          "AG01",
}

var knownISOCodes = map[string]bool{
	"AC01": true, "AC03": true, "AC04": true, "AC06": true, "AG01": true,
	"AM04": true, "AM05": true, "CUST": true, "FRAD": true, "MS03": true,
}

// MapReversalReason converte o motivo interno em código ISO.
// Códigos ISO conhecidos passam direto; qualquer outra coisa vira MS03.
func MapReversalReason(internal string) string {
	code := strings.ToUpper(strings.TrimSpace(internal))
	if knownISOCodes[code] {
		return code
	}
	if iso, ok := internalToISO[code]; ok {
		return iso
	}
	return DefaultISOReason
}
