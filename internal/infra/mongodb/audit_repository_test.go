package mongodb

import (
	"testing"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNewAuditLog_DocumentShape(t *testing.T) {
	origin := int64(10)
	occurred := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	doc := NewAuditLog(gateway.SettlementEvent{
		TransactionID: 7,
		Reference:     "K-7",
		OperationType: "OUTBOUND_TRANSFER",
		Status:        "FAILED",
		Amount:        "25.00",
		OriginAccount: &origin,
		ExternalBank:  "ARCBANK",
		ReasonCode:    "AC03",
		OccurredAt:    occurred,
	})

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded bson.M
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	assert.Equal(t, int64(7), decoded["transaction_id"])
	assert.Equal(t, "FAILED", decoded["status"])
	assert.Equal(t, "AC03", decoded["reason_code"])
	assert.Equal(t, int64(10), decoded["origin_account"])
	assert.NotContains(t, decoded, "destination_account")
	assert.NotContains(t, decoded, "correlation_code")
}
