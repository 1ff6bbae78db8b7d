package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const auditCollection = "audit_logs"

// AuditLog é o documento da trilha de auditoria de liquidação.
// Um documento por (transação, status): reentregas do mesmo evento não duplicam.
type AuditLog struct {
	TransactionID   int64     `bson:"transaction_id"`
	Reference       string    `bson:"reference"`
	CorrelationCode string    `bson:"correlation_code,omitempty"`
	OperationType   string    `bson:"operation_type"`
	Status          string    `bson:"status"`
	Amount          string    `bson:"amount"`
	OriginAccount   *int64    `bson:"origin_account,omitempty"`
	DestAccount     *int64    `bson:"destination_account,omitempty"`
	ExternalBank    string    `bson:"external_bank,omitempty"`
	ReasonCode      string    `bson:"reason_code,omitempty"`
	Description     string    `bson:"description,omitempty"`
	OccurredAt      time.Time `bson:"occurred_at"`
	ProcessedAt     time.Time `bson:"processed_at"`
}

// NewAuditLog converte o evento publicado no documento salvo.
func NewAuditLog(event gateway.SettlementEvent) AuditLog {
	return AuditLog{
		TransactionID:   event.TransactionID,
		Reference:       event.Reference,
		CorrelationCode: event.CorrelationCode,
		OperationType:   event.OperationType,
		Status:          event.Status,
		Amount:          event.Amount,
		OriginAccount:   event.OriginAccount,
		DestAccount:     event.DestAccount,
		ExternalBank:    event.ExternalBank,
		ReasonCode:      event.ReasonCode,
		Description:     event.Description,
		OccurredAt:      event.OccurredAt,
	}
}

type AuditRepository struct {
	collection *mongo.Collection
}

var _ gateway.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	collection := client.Database(dbName).Collection(auditCollection)
	return &AuditRepository{collection: collection}
}

// EnsureIndexes cria o índice único que torna o Save idempotente e o de consulta por referência.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_transaction_status"),
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetName("idx_reference"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (r *AuditRepository) Save(ctx context.Context, event gateway.SettlementEvent) error {
	doc := NewAuditLog(event)
	doc.ProcessedAt = time.Now().UTC()

	filter := bson.D{{Key: "transaction_id", Value: doc.TransactionID}, {Key: "status", Value: doc.Status}}
	update := bson.D{{Key: "$setOnInsert", Value: doc}}

	if _, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert audit log: %w", err)
	}
	return nil
}
