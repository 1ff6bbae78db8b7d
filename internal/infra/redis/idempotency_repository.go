package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ledgerflow:idempotency:"

// cachedPayload é o que vai para o Redis; o corpo segue como bytes (base64 no JSON).
type cachedPayload struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// IdempotencyRepository guarda respostas HTTP já servidas para replays com o mesmo Idempotency-Key.
type IdempotencyRepository struct {
	client redis.UniversalClient
}

var _ gateway.IdempotencyRepository = (*IdempotencyRepository)(nil)

func NewIdempotencyRepository(client redis.UniversalClient) *IdempotencyRepository {
	return &IdempotencyRepository{client: client}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*gateway.CachedResponse, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var payload cachedPayload
	if err := json.Unmarshal(val, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	return &gateway.CachedResponse{
		StatusCode:  payload.StatusCode,
		Body:        payload.Body,
		ContentType: payload.ContentType,
	}, nil
}

// Save não sobrescreve: se duas requisições iguais terminarem juntas, fica a primeira resposta.
func (r *IdempotencyRepository) Save(ctx context.Context, key string, response gateway.CachedResponse, ttl time.Duration) error {
	bytes, err := json.Marshal(cachedPayload{
		StatusCode:  response.StatusCode,
		ContentType: response.ContentType,
		Body:        response.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := r.client.SetNX(ctx, keyPrefix+key, bytes, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}
