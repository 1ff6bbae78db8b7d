package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive = "ACTIVE"
	DefaultCurrency     = "USD"
)

// Account é a visão local de uma conta do ledger remoto.
// Esta entidade não sabe o que é HTTP: o cliente do ledger preenche.
type Account struct {
	ID            int64
	AccountNumber string
	OwnerID       int64
	OwnerName     string
	Status        string
	Currency      string
	Balance       decimal.Decimal
}

func (a *Account) IsActive() bool {
	return a.Status == "" || strings.EqualFold(a.Status, AccountStatusActive)
}

// HasSufficientFunds valida o saldo antes mesmo de tocar no ledger
func (a *Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.HasSufficientFunds(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// AccountLookup é a resposta de validação de conta (local ou via switch).
type AccountLookup struct {
	Exists    bool   `json:"exists"`
	OwnerName string `json:"ownerName,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Bank é uma instituição participante da rede.
type Bank struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}
