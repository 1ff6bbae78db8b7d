package switchclient

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
)

// Formas de resposta que o switch já mandou em produção:
//
//	{"success":true,"data":{"instructionId":..,"codigo_referencia":..,"estado":..},"error":null}
//	[{"idInstruccion":..,"estado":..}, ...]
//	{"idInstruccion":..,"estado":..,"codigoReferencia":..,"mensaje":..}
//
// Tudo que depende dessas variações fica aqui; o resto do código só vê gateway.SwitchResponse.

type envelopeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"descripcion"`
}

// DecodeResponse normaliza o corpo de uma resposta 2xx.
// instructionID escolhe o item certo quando o switch devolve uma lista.
func DecodeResponse(body []byte, instructionID string) *gateway.SwitchResponse {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &gateway.SwitchResponse{Success: true}
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return &gateway.SwitchResponse{Success: true}
		}
		item := pickItem(items, instructionID)
		if item == nil {
			return &gateway.SwitchResponse{Success: true}
		}
		return decodeFlat(item)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return &gateway.SwitchResponse{Success: true}
		}
		if hasAny(fields, "data", "error", "success") {
			return decodeEnvelope(fields)
		}
		return decodeFlat(fields)
	}

	// 2xx com corpo ilegível (texto puro, "OK"): o switch aceitou
	return &gateway.SwitchResponse{Success: true}
}

// pickItem procura o item da instrução pedida; sem ID ou lista de um só, usa o primeiro.
func pickItem(items []map[string]json.RawMessage, instructionID string) map[string]json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	if instructionID != "" {
		for _, item := range items {
			if strings.EqualFold(stringField(item, "idInstruccion", "instructionId", "id"), instructionID) {
				return item
			}
		}
		if len(items) > 1 {
			return nil
		}
	}
	return items[0]
}

func decodeEnvelope(fields map[string]json.RawMessage) *gateway.SwitchResponse {
	resp := &gateway.SwitchResponse{}

	if raw, ok := fields["data"]; ok && !isNull(raw) {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(raw, &data); err == nil {
			resp.Data = dataOf(data)
		}
	}
	if resp.Data == nil {
		if top := dataOf(fields); *top != (gateway.SwitchResponseData{}) {
			resp.Data = top
		}
	}
	resp.Error = errorOf(fields)

	var explicit *bool
	if raw, ok := fields["success"]; ok && !isNull(raw) {
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			explicit = &v
		}
	}

	resp.Success = resp.Error == nil
	if explicit != nil {
		resp.Success = *explicit
	}
	if !resp.Success && domain.ClassifyPeerStatus(resp.Status()).IsSuccess() {
		resp.Success = true
	}
	return resp
}

func decodeFlat(fields map[string]json.RawMessage) *gateway.SwitchResponse {
	data := dataOf(fields)
	resp := &gateway.SwitchResponse{Error: errorOf(fields)}
	if data.InstructionID != "" || data.Status != "" || data.CorrelationCode != "" {
		resp.Data = data
	}

	outcome := domain.ClassifyPeerStatus(data.Status)
	switch {
	case outcome.IsSuccess():
		resp.Success = true
	case outcome == domain.PeerOutcomeFailed:
		resp.Success = false
	default:
		resp.Success = resp.Error == nil && data.InstructionID != ""
	}
	return resp
}

func dataOf(fields map[string]json.RawMessage) *gateway.SwitchResponseData {
	return &gateway.SwitchResponseData{
		InstructionID:   stringField(fields, "instructionId", "idInstruccion", "id"),
		CorrelationCode: stringField(fields, "codigo_referencia", "codigoReferencia", "correlationCode"),
		Status:          stringField(fields, "estado", "status"),
	}
}

// errorOf lê o erro como objeto, texto ou nos campos soltos de mensagem.
func errorOf(fields map[string]json.RawMessage) *gateway.SwitchResponseError {
	if raw, ok := fields["error"]; ok && !isNull(raw) {
		var structured envelopeError
		if err := json.Unmarshal(raw, &structured); err == nil {
			msg := structured.Message
			if msg == "" {
				msg = structured.Description
			}
			if msg != "" || structured.Code != "" {
				return &gateway.SwitchResponseError{Code: structured.Code, Message: msg}
			}
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil && text != "" {
			return &gateway.SwitchResponseError{Message: text}
		}
	}
	if msg := stringField(fields, "message", "mensaje", "detail", "reason"); msg != "" {
		return &gateway.SwitchResponseError{Code: stringField(fields, "code", "codigo"), Message: msg}
	}
	return nil
}

// stringField devolve o primeiro campo não vazio; números viram texto.
func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func hasAny(fields map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
