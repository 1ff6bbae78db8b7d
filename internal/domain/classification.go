package domain

import (
	"regexp"
	"strings"
)

// PeerOutcome é a leitura normalizada de um status vindo do switch.
type PeerOutcome int

const (
	PeerOutcomeUnknown PeerOutcome = iota
	PeerOutcomeCompleted
	PeerOutcomeAccepted // enfileirada/aceita pelo switch: tratada como sucesso no polling
	PeerOutcomeFailed
)

func (o PeerOutcome) String() string {
	switch o {
	case PeerOutcomeCompleted:
		return "completed"
	case PeerOutcomeAccepted:
		return "accepted"
	case PeerOutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// IsSuccess vale para concluída ou aceita.
func (o PeerOutcome) IsSuccess() bool {
	return o == PeerOutcomeCompleted || o == PeerOutcomeAccepted
}

// Vocabulário fixo do switch (mistura inglês/espanhol dependendo da versão da API).
var peerStatusVocabulary = map[string]PeerOutcome{
	"COMPLETED":  PeerOutcomeCompleted,
	"COMPLETADA": PeerOutcomeCompleted,
	"EXITOSA":    PeerOutcomeCompleted,
	"PROCESADA":  PeerOutcomeCompleted,
	"SUCCESS":    PeerOutcomeCompleted,
	"OK":         PeerOutcomeCompleted,
	"DEVUELTA":   PeerOutcomeCompleted,
	"RETURNED":   PeerOutcomeCompleted,
	"QUEUED":     PeerOutcomeAccepted,
	"ACCEPTED":   PeerOutcomeAccepted,
	"FAILED":     PeerOutcomeFailed,
	"FALLIDA":    PeerOutcomeFailed,
	"RECHAZADA":  PeerOutcomeFailed,
	"REJECTED":   PeerOutcomeFailed,
	"REVERSADA":  PeerOutcomeFailed,
	"REVERSED":   PeerOutcomeFailed,
}

// ClassifyPeerStatus normaliza o status textual do switch (case-insensitive).
func ClassifyPeerStatus(raw string) PeerOutcome {
	outcome, ok := peerStatusVocabulary[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return PeerOutcomeUnknown
	}
	return outcome
}

// Motivos amigáveis devolvidos ao cliente.
const (
	ReasonInvalidDestination   = "invalid destination account (AC01)"
	ReasonDestinationNotValid  = "destination account is not valid (AC03)"
	ReasonDestinationBlocked   = "destination account is blocked (AC06)"
	ReasonDestinationClosed    = "destination account is closed (AC04)"
	ReasonInsufficientFunds    = "insufficient funds"
	ReasonDestinationDown      = "destination bank unavailable, try again later"
	ReasonGenericCommunication = "communication error with the financial institution"
	ReasonExpired              = "expired: no confirmation received from the switch"
	ReasonPendingConfirmation  = "processing: waiting for switch confirmation"
)

type reasonRule struct {
	needles []string
	reason  string
}

// A ordem importa: a primeira regra que casar vence.
var rejectionRules = []reasonRule{
	{needles: []string{"AC01"}, reason: ReasonInvalidDestination},
	{needles: []string{"AC03"}, reason: ReasonDestinationNotValid},
	{needles: []string{"AC06"}, reason: ReasonDestinationBlocked},
	{needles: []string{"AC04"}, reason: ReasonDestinationClosed},
	{needles: []string{"TIMEOUT", "TIME OUT", "TIMED OUT", "504"}, reason: ReasonDestinationDown},
	{needles: []string{"FONDOS", "INSUFFICIENT", "AM04"}, reason: ReasonInsufficientFunds},
}

// FriendlyReason traduz o texto cru do switch para um motivo estável.
// Nunca devolve detalhes de transporte.
func FriendlyReason(raw string) string {
	upper := strings.ToUpper(raw)
	for _, rule := range rejectionRules {
		for _, needle := range rule.needles {
			if strings.Contains(upper, needle) {
				return rule.reason
			}
		}
	}
	return ReasonGenericCommunication
}

var connectionProblemMarkers = []string{
	"404", "NOT FOUND", "500", "502", "503", "504", "REFUSED", "TIMEOUT", "TIME OUT", "TIMED OUT",
	"DEADLINE EXCEEDED", "UNREACHABLE",
}

// IsConnectionProblem identifica falhas que a reconciliação trata como FAILED imediato.
func IsConnectionProblem(raw string) bool {
	upper := strings.ToUpper(raw)
	for _, marker := range connectionProblemMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

const maxReasonLength = 200

// TruncateReason corta mensagens longas para caber no registro.
func TruncateReason(raw string) string {
	runes := []rune(raw)
	if len(runes) <= maxReasonLength {
		return raw
	}
	return string(runes[:maxReasonLength]) + "..."
}

// ConnectionProblemReason monta o motivo gravado quando o switch não responde.
func ConnectionProblemReason(raw string) string {
	return "connection problem: " + TruncateReason(raw)
}

var isoCodePattern = regexp.MustCompile(`\b(AC0[1-6]|AM0[4-5]|AG01|MS03|FRAD|CUST)\b`)

// ExtractISOCode acha o primeiro código ISO 20022 conhecido dentro do texto cru.
func ExtractISOCode(raw string) string {
	return isoCodePattern.FindString(strings.ToUpper(raw))
}
