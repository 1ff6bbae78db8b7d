package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// newMessageID segue o formato MSG-<banco>-<timestamp>-<sufixo>.
func newMessageID(bankCode string) string {
	return fmt.Sprintf("MSG-%s-%d-%s", bankCode, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func newRefundRequest(bankCode, returnID, originalID, reasonCode string, amount decimal.Decimal, now time.Time) gateway.RefundRequest {
	var request gateway.RefundRequest
	request.Header = gateway.MessageHeader{
		MessageID:         newMessageID(bankCode),
		CreationDateTime:  now.UTC().Format(time.RFC3339),
		OriginatingBankID: bankCode,
	}
	request.Body.ReturnInstructionID = returnID
	request.Body.OriginalInstructionID = originalID
	request.Body.ReturnReason = reasonCode
	request.Body.ReturnAmount = gateway.Money{Currency: domain.DefaultCurrency, Value: amount}
	return request
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func containsAnyFold(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Formatos aceitos para header.creationDateTime (com e sem fuso).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp devolve o zero value quando não consegue interpretar.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
