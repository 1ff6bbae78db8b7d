package usecase

import (
	"context"
	"strings"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/rs/zerolog/log"
)

// ValidateAccountUseCase confirma se uma conta existe antes de transferir.
// Conta deste banco: ledger local. Outro banco: consulta via switch.
type ValidateAccountUseCase struct {
	ledger   gateway.LedgerClient
	peer     gateway.SwitchPeer
	bankCode string
}

func NewValidateAccount(ledger gateway.LedgerClient, peer gateway.SwitchPeer, bankCode string) *ValidateAccountUseCase {
	return &ValidateAccountUseCase{ledger: ledger, peer: peer, bankCode: bankCode}
}

func (u *ValidateAccountUseCase) Execute(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, domain.ValidationError("account number is required")
	}
	bankID = strings.ToUpper(strings.TrimSpace(bankID))
	if bankID == "" || bankID == u.bankCode {
		return u.LookupLocal(ctx, accountNumber)
	}

	lookup, err := u.peer.LookupAccount(ctx, bankID, accountNumber)
	if err != nil {
		log.Warn().Err(err).Str("bank", bankID).Msg("Falha na validação de conta via switch")
		return &domain.AccountLookup{Exists: false, Message: "could not validate account with " + bankID}, nil
	}
	return lookup, nil
}

// LookupLocal também responde as consultas acmt.023 que chegam pelo webhook.
func (u *ValidateAccountUseCase) LookupLocal(ctx context.Context, accountNumber string) (*domain.AccountLookup, error) {
	account, err := u.ledger.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &domain.AccountLookup{Exists: false, Message: "account not found"}, nil
	}

	lookup := &domain.AccountLookup{
		Exists:    true,
		OwnerName: account.OwnerName,
		Currency:  firstNonEmpty(account.Currency, domain.DefaultCurrency),
		Status:    firstNonEmpty(account.Status, domain.AccountStatusActive),
	}
	if !account.IsActive() {
		lookup.Message = "account is not active"
	}
	return lookup, nil
}
