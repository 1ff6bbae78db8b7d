package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/shopspring/decimal"
)

const (
	accountPath       = "/api/v1/cuentas/ahorros/%d"
	balancePath       = "/api/v1/cuentas/ahorros/%d/saldo"
	accountByNumber   = "/api/v1/cuentas/ahorros/buscar/%s"
	defaultTimeout    = 5 * time.Second
	maxErrorBodyBytes = 2048
)

// Client fala com o serviço de contas (o dono dos saldos).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ gateway.LedgerClient = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// accountPayload é o formato do serviço de contas; o ID vem como idCuenta ou id conforme a versão.
type accountPayload struct {
	AccountID int64               `json:"idCuenta"`
	LegacyID  int64               `json:"id"`
	Number    string              `json:"numeroCuenta"`
	OwnerID   int64               `json:"idCliente"`
	OwnerName string              `json:"nombreCliente"`
	Status    string              `json:"estado"`
	Currency  string              `json:"moneda"`
	Balance   decimal.NullDecimal `json:"saldo"`
}

func (p accountPayload) toDomain() *domain.Account {
	id := p.AccountID
	if id == 0 {
		id = p.LegacyID
	}
	account := &domain.Account{
		ID:            id,
		AccountNumber: p.Number,
		OwnerID:       p.OwnerID,
		OwnerName:     p.OwnerName,
		Status:        p.Status,
		Currency:      p.Currency,
	}
	if account.Currency == "" {
		account.Currency = domain.DefaultCurrency
	}
	if p.Balance.Valid {
		account.Balance = p.Balance.Decimal
	}
	return account
}

type balancePayload struct {
	Balance decimal.Decimal `json:"saldo"`
}

func (c *Client) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	body, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf(balancePath, accountID), nil)
	if err != nil {
		return decimal.Zero, err
	}
	if status == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}
	if err := expectOK(status, body); err != nil {
		return decimal.Zero, err
	}
	return parseBalance(body)
}

// parseBalance aceita tanto o número puro quanto {"saldo": n}.
func parseBalance(body []byte) (decimal.Decimal, error) {
	var plain decimal.Decimal
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain, nil
	}
	var wrapped balancePayload
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance: %w", err)
	}
	return wrapped.Balance, nil
}

func (c *Client) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	// Número puro no JSON: o serviço de contas não aceita decimal entre aspas
	payload, err := json.Marshal(map[string]json.Number{"saldo": json.Number(balance.StringFixed(2))})
	if err != nil {
		return err
	}
	body, status, err := c.do(ctx, http.MethodPut, fmt.Sprintf(balancePath, accountID), payload)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}
	return expectOK(status, body)
}

func (c *Client) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	body, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf(accountPath, accountID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}
	if err := expectOK(status, body); err != nil {
		return nil, err
	}

	var payload accountPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode account %d: %w", accountID, err)
	}
	account := payload.toDomain()
	if account.ID == 0 {
		account.ID = accountID
	}
	return account, nil
}

func (c *Client) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	body, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf(accountByNumber, url.PathEscape(accountNumber)), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || (status == http.StatusOK && len(bytes.TrimSpace(body)) == 0) {
		return nil, nil
	}
	if err := expectOK(status, body); err != nil {
		return nil, err
	}

	var payload accountPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", accountNumber, err)
	}
	account := payload.toDomain()
	if account.ID == 0 {
		return nil, nil
	}
	if account.AccountNumber == "" {
		account.AccountNumber = accountNumber
	}
	return account, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read ledger response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func expectOK(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return fmt.Errorf("ledger returned status %s: %s", strconv.Itoa(status), string(body))
}
