package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidAmount        = errors.New("transaction amount must be greater than zero")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrPeerCommunication    = errors.New("communication error with the financial institution")
	ErrPeerRejected         = errors.New("rejected by the switch")
	ErrOriginalNotFound     = errors.New("original transaction not found")
	ErrAlreadyReversed      = errors.New("transaction already reversed")
	ErrCannotReverseFunds   = errors.New("cannot reverse, insufficient funds")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnrecognizedEnvelope = errors.New("unrecognized message")
)

// ValidationError descreve o campo inválido sem perder o sentinel.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PeerError é a falha técnica de uma chamada HTTP ao switch.
type PeerError struct {
	StatusCode int // 0 quando nem chegou resposta (timeout, conexão recusada)
	Body       string
	Err        error
}

func (e *PeerError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("switch unreachable: %v", e.Err)
		}
		return "switch unreachable"
	}
	return fmt.Sprintf("switch error (%d): %s", e.StatusCode, e.Body)
}

func (e *PeerError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPeerCommunication, e.Err}
	}
	return []error{ErrPeerCommunication}
}

// RejectionError é uma recusa de negócio com código ISO 20022.
type RejectionError struct {
	Code   string
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Code == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Err }

// Reject cria uma RejectionError ligada a um erro da taxonomia.
func Reject(sentinel error, code, reason string) error {
	return &RejectionError{Code: code, Reason: reason, Err: sentinel}
}

// TransitionError aponta uma mudança de status fora da tabela.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsBusinessError separa recusas de regra de negócio (não adianta reprocessar)
// de falhas técnicas (devem ser reentregues).
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrValidation, ErrInvalidAmount, ErrAccountNotFound, ErrInsufficientFunds,
		ErrPeerRejected, ErrOriginalNotFound, ErrAlreadyReversed, ErrCannotReverseFunds,
		ErrUnrecognizedEnvelope, ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ReasonCodeOf extrai o código ISO de uma recusa, se houver.
func ReasonCodeOf(err error) string {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Code
	}
	return ""
}
