package switchclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Renova antes do vencimento real para não mandar token expirando no meio da chamada
const tokenRefreshSkew = 5 * time.Minute

// TokenCache guarda o access token OAuth do switch (client credentials).
// Um único refresh por vez: chamadas concorrentes esperam o mutex e reaproveitam o token novo.
type TokenCache struct {
	mu     sync.Mutex
	config clientcredentials.Config
	token  *oauth2.Token
	now    func() time.Time
}

func NewTokenCache(tokenURL, clientID, clientSecret, scope string) *TokenCache {
	var scopes []string
	if scope = strings.TrimSpace(scope); scope != "" {
		scopes = strings.Fields(scope)
	}
	return &TokenCache{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		now: time.Now,
	}
}

// GetValidToken devolve o token em cache ou busca outro se estiver perto de vencer.
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid() {
		return c.token.AccessToken, nil
	}

	log.Info().Str("token_url", c.config.TokenURL).Msg("Renovando token OAuth do switch")
	token, err := c.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to refresh switch token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("switch token endpoint returned an empty access token")
	}
	c.token = token
	log.Info().Time("expires_at", token.Expiry).Msg("Token OAuth renovado")
	return token.AccessToken, nil
}

func (c *TokenCache) valid() bool {
	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	// Sem expires_in o token vale até o servidor recusar
	if c.token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(tokenRefreshSkew).Before(c.token.Expiry)
}

// Invalidate força o próximo GetValidToken a buscar um token novo (ex.: após um 401).
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
