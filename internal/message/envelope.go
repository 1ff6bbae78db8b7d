// Package message interpreta os envelopes ISO 20022 (header + body) que chegam do switch
// pelo webhook ou pela fila, e decide qual fluxo de recebimento se aplica.
package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
)

// NamespaceAccountInquiry identifica uma consulta de validação de conta.
const NamespaceAccountInquiry = "acmt.023.001.02"

// Envelope guarda o payload bruto e o body como mapa, para classificar antes de tipar.
type Envelope struct {
	Header gateway.MessageHeader
	Body   map[string]json.RawMessage
	raw    []byte
}

type rawEnvelope struct {
	Header json.RawMessage            `json:"header"`
	Body   map[string]json.RawMessage `json:"body"`
}

// Parse só exige JSON válido com um body; nenhum campo obrigatório é assumido aqui.
func Parse(payload []byte) (*Envelope, error) {
	var decoded rawEnvelope
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", domain.ErrUnrecognizedEnvelope, err)
	}
	if decoded.Body == nil {
		return nil, fmt.Errorf("%w: body is missing", domain.ErrUnrecognizedEnvelope)
	}

	envelope := &Envelope{Body: decoded.Body, raw: payload}
	if len(decoded.Header) > 0 && string(decoded.Header) != "null" {
		// Header com tipos inesperados não impede a classificação
		_ = json.Unmarshal(decoded.Header, &envelope.Header)
	}
	return envelope, nil
}

// Has indica se o body traz a chave com algum valor não nulo.
func (e *Envelope) Has(key string) bool {
	value, ok := e.Body[key]
	return ok && len(value) > 0 && string(value) != "null"
}

func (e *Envelope) Namespace() string {
	return strings.TrimSpace(e.Header.MessageNamespace)
}

// decode tipa o payload inteiro e valida as tags.
func (e *Envelope) decode(target any) error {
	if err := json.Unmarshal(e.raw, target); err != nil {
		return domain.ValidationError("invalid message: %v", err)
	}
	return validateStruct(target)
}
