package gateway

import (
	"context"
	"time"
)

// CachedResponse é a resposta HTTP guardada para replays com o mesmo Idempotency-Key
type CachedResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

type IdempotencyRepository interface {
	// Get retorna (nil, nil) em cache miss
	Get(ctx context.Context, key string) (*CachedResponse, error)

	// Save armazena a resposta com um TTL (Time To Live)
	Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error
}
