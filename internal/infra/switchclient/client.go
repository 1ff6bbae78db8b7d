package switchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	transfersPath     = "/api/v2/switch/transfers"
	transferPath      = "/api/v2/switch/transfers/%s"
	returnPath        = "/api/v2/switch/transfers/return"
	callbackPath      = "/api/v2/switch/transfers/callback"
	lookupPath        = "/api/v2/switch/accounts/lookup"
	reasonsPath       = "/api/v1/reference/iso20022/errors"
	banksPath         = "/api/v1/red/bancos"
	healthPath        = "/api/v2/transfers/health"
	defaultTimeout    = 10 * time.Second
	maxErrorBodyBytes = 2048
)

// TokenProvider entrega o bearer token das chamadas (TokenCache em produção).
type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate()
}

type Options struct {
	BaseURL  string
	APIKey   string
	BankCode string
	Timeout  time.Duration
	Tokens   TokenProvider // opcional
	Signer   *Signer       // opcional
}

// Client é o SwitchPeer sobre HTTP. Toda resposta 2xx passa pelo DecodeResponse;
// não-2xx e falhas de transporte viram *domain.PeerError.
type Client struct {
	httpClient *http.Client
	opts       Options
}

var _ gateway.SwitchPeer = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

func (c *Client) InitiateTransfer(ctx context.Context, request gateway.TransferRequest) (*gateway.SwitchResponse, error) {
	body, err := c.call(ctx, "initiate", http.MethodPost, transfersPath, request)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(body, request.Body.InstructionID), nil
}

func (c *Client) QueryStatus(ctx context.Context, instructionID string) (*gateway.SwitchResponse, error) {
	body, err := c.call(ctx, "query_status", http.MethodGet, fmt.Sprintf(transferPath, url.PathEscape(instructionID)), nil)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(body, instructionID), nil
}

func (c *Client) RequestRefund(ctx context.Context, request gateway.RefundRequest) (*gateway.SwitchResponse, error) {
	body, err := c.call(ctx, "refund", http.MethodPost, returnPath, request)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(body, request.Body.ReturnInstructionID), nil
}

func (c *Client) SendStatusReport(ctx context.Context, report gateway.StatusReport) error {
	_, err := c.call(ctx, "status_report", http.MethodPost, callbackPath, report)
	return err
}

type reasonPayload struct {
	Code        string `json:"code"`
	Codigo      string `json:"codigo"`
	Description string `json:"description"`
	Descripcion string `json:"descripcion"`
}

func (c *Client) ListRejectionReasons(ctx context.Context) ([]domain.RejectionReason, error) {
	body, err := c.call(ctx, "rejection_reasons", http.MethodGet, reasonsPath, nil)
	if err != nil {
		return nil, err
	}
	var payload []reasonPayload
	if err := decodeList(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode rejection reasons: %w", err)
	}

	reasons := make([]domain.RejectionReason, 0, len(payload))
	for _, p := range payload {
		code := firstNonEmpty(p.Code, p.Codigo)
		if code == "" {
			continue
		}
		reasons = append(reasons, domain.RejectionReason{Code: code, Description: firstNonEmpty(p.Description, p.Descripcion)})
	}
	return reasons, nil
}

type bankPayload struct {
	ID     string `json:"id"`
	Codigo string `json:"codigo"`
	Code   string `json:"code"`
	Nombre string `json:"nombre"`
	Name   string `json:"name"`
	Estado string `json:"estado"`
	Status string `json:"status"`
}

func (c *Client) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	body, err := c.call(ctx, "list_banks", http.MethodGet, banksPath, nil)
	if err != nil {
		return nil, err
	}
	var payload []bankPayload
	if err := decodeList(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode bank directory: %w", err)
	}

	banks := make([]domain.Bank, 0, len(payload))
	for _, p := range payload {
		code := firstNonEmpty(p.Codigo, p.Code, p.ID)
		if code == "" {
			continue
		}
		banks = append(banks, domain.Bank{
			Code:   code,
			Name:   firstNonEmpty(p.Nombre, p.Name, code),
			Status: firstNonEmpty(p.Estado, p.Status),
		})
	}
	return banks, nil
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	body, err := c.call(ctx, "health", http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	health := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &health); err != nil {
			health["raw"] = string(body)
		}
	}
	if _, ok := health["status"]; !ok {
		health["status"] = "UP"
	}
	return health, nil
}

type lookupRequest struct {
	Header struct {
		OriginatingBankID string `json:"originatingBankId"`
	} `json:"header"`
	Body struct {
		TargetBankID        string `json:"targetBankId"`
		TargetAccountNumber string `json:"targetAccountNumber"`
	} `json:"body"`
}

type lookupResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Exists    bool   `json:"exists"`
		OwnerName string `json:"ownerName"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		Mensaje   string `json:"mensaje"`
		Message   string `json:"message"`
	} `json:"data"`
}

func (c *Client) LookupAccount(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error) {
	var request lookupRequest
	request.Header.OriginatingBankID = c.opts.BankCode
	request.Body.TargetBankID = bankID
	request.Body.TargetAccountNumber = accountNumber

	body, err := c.call(ctx, "account_lookup", http.MethodPost, lookupPath, request)
	if err != nil {
		return nil, err
	}
	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode account lookup: %w", err)
	}
	if payload.Data == nil {
		return &domain.AccountLookup{Exists: false, Message: firstNonEmpty(payload.Status, "no data returned by the switch")}, nil
	}
	return &domain.AccountLookup{
		Exists:    payload.Data.Exists,
		OwnerName: payload.Data.OwnerName,
		Currency:  payload.Data.Currency,
		Status:    payload.Data.Status,
		Message:   firstNonEmpty(payload.Data.Message, payload.Data.Mensaje),
	}, nil
}

// call executa a requisição, mede a latência e converte falhas em *domain.PeerError.
func (c *Client) call(ctx context.Context, operation, method, path string, payload any) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, method, path, payload)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PeerLatency.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn().Err(err).Str("operation", operation).Str("path", path).Msg("Chamada ao switch falhou")
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode switch request: %w", err)
		}
	}

	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(ctx, req, encoded)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.PeerError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.PeerError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized && c.opts.Tokens != nil {
		// Token revogado antes do vencimento: a próxima chamada busca outro
		log.Warn().Str("path", path).Msg("Switch recusou o token OAuth, invalidando cache")
		c.opts.Tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		return nil, &domain.PeerError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decorate aplica os cabeçalhos de segurança. Falha de token ou assinatura não
// bloqueia a chamada: o switch decide se aceita.
func (c *Client) decorate(ctx context.Context, req *http.Request, payload []byte) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Trace-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("apikey", c.opts.APIKey)
	}
	if c.opts.Tokens != nil {
		token, err := c.opts.Tokens.GetValidToken(ctx)
		if err != nil {
			log.Warn().Err(err).Str("path", req.URL.Path).Msg("Sem token OAuth para a chamada ao switch")
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if payload != nil && c.opts.Signer.CanSign() {
		signature, err := c.opts.Signer.Sign(payload)
		if err != nil {
			log.Error().Err(err).Str("path", req.URL.Path).Msg("Falha ao assinar requisição")
			return
		}
		req.Header.Set(SignatureHeader, signature)
	}
}

// decodeList aceita tanto a lista pura quanto {"data": [...]}.
func decodeList(body []byte, target any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, target)
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	if len(wrapped.Data) == 0 {
		return nil
	}
	return json.Unmarshal(wrapped.Data, target)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
