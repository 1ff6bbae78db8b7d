package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBalance(t *testing.T, f *fixture, accountID int64, want string) {
	t.Helper()
	got := f.ledger.balance(accountID)
	assert.True(t, dec(want).Equal(got), "account %d: want %s, got %s", accountID, want, got)
}

func outboundInput(key string) OutboundTransferInput {
	return OutboundTransferInput{
		OriginAccountID: 1,
		ExternalAccount: "2200001",
		ExternalBankID:  "ARCBANK",
		BeneficiaryName: "Maria",
		Amount:          dec("100"),
		Description:     "rent",
		IdempotencyKey:  key,
	}
}

func TestOutboundTransfer_ImmediateCompletion(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")

	var sent gateway.TransferRequest
	f.peer.InitiateTransferFunc = func(_ context.Context, r gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		sent = r
		return &gateway.SwitchResponse{Success: true, Data: &gateway.SwitchResponseData{Status: "COMPLETED", CorrelationCode: "123456"}}, nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, out.Transaction.Status)
	assert.Equal(t, "123456", domain.StringValue(out.Transaction.CorrelationCode))
	assert.False(t, out.Processing)
	assert.Equal(t, 0, f.peer.queryCalls, "confirmação imediata não deve fazer polling")
	assertBalance(t, f, 1, "900")

	assert.Equal(t, "k-1", sent.Body.InstructionID)
	assert.Equal(t, "REF-BANTEC-k-1", sent.Body.EndToEndID)
	assert.Equal(t, "1000001", sent.Body.Debtor.AccountID)
	assert.Equal(t, "ARCBANK", sent.Body.Creditor.TargetBankID)
	assert.Contains(t, f.publisher.keys(), "transaction.completed")
}

func TestOutboundTransfer_RejectedDestinationCompensates(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return &gateway.SwitchResponse{Success: false, Error: &gateway.SwitchResponseError{Code: "AC01", Message: "cuenta destino no existe"}}, nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-ac01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPeerRejected))
	assert.Equal(t, "AC01", domain.ReasonCodeOf(err))

	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Transaction.Status)
	assert.Contains(t, out.Transaction.Description, domain.ReasonInvalidDestination)
	assertBalance(t, f, 1, "1000")

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "k-ac01")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Len(t, f.peer.refunds, 1, "refund compensatório best-effort")
}

func TestOutboundTransfer_TechnicalErrorCompensatesWithoutError(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return nil, &domain.PeerError{StatusCode: 503, Body: "service unavailable"}
	}
	f.peer.RequestRefundFunc = func(context.Context, gateway.RefundRequest) (*gateway.SwitchResponse, error) {
		return nil, &domain.PeerError{StatusCode: 409, Body: "original not found"}
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-503"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, out.Transaction.Status)
	assertBalance(t, f, 1, "1000")
}

func TestOutboundTransfer_PollsUntilCompleted(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return peerStatus("QUEUED"), nil
	}
	statuses := []string{"PROCESSING", "EXITOSA"}
	f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
		s := statuses[0]
		statuses = statuses[1:]
		return peerStatus(s), nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-poll"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Transaction.Status)
	assert.Equal(t, 2, f.peer.queryCalls)
	assertBalance(t, f, 1, "900")
}

func TestOutboundTransfer_PollRejectedCompensates(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return peerStatus("ACCEPTED"), nil
	}
	f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
		return peerStatus("RECHAZADA"), nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-rej"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPeerRejected))
	assert.Equal(t, domain.StatusFailed, out.Transaction.Status)
	assertBalance(t, f, 1, "1000")
}

func TestOutboundTransfer_ExhaustedPollingStaysPending(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return peerStatus("QUEUED"), nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("k-slow"))
	require.NoError(t, err)
	assert.True(t, out.Processing)
	assert.Equal(t, domain.StatusPending, out.Transaction.Status)
	assert.Contains(t, out.Transaction.Description, domain.ReasonPendingConfirmation)
	assert.Equal(t, 3, f.peer.queryCalls)
	assertBalance(t, f, 1, "900")
}

func TestOutboundTransfer_SameKeyIsIdempotent(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	uc := f.outbound()

	first, err := uc.Execute(context.Background(), outboundInput("k-dup"))
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), outboundInput("k-dup"))
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, 1, f.peer.initiateCalls)
	assert.Equal(t, 1, f.repo.count())
	assertBalance(t, f, 1, "900")
}

func TestOutboundTransfer_InsufficientFundsNeverReachesSwitch(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "50")

	_, err := f.outbound().Execute(context.Background(), outboundInput("k-poor"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.Equal(t, 0, f.peer.initiateCalls)
	assert.Equal(t, 0, f.repo.count())
	assertBalance(t, f, 1, "50")
}

func TestOutboundTransfer_RegisterFailureRestoresDebit(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.repo.CreateErr = errors.New("connection reset")

	_, err := f.outbound().Execute(context.Background(), outboundInput("k-db"))
	require.Error(t, err)
	assert.Equal(t, 0, f.peer.initiateCalls)
	assertBalance(t, f, 1, "1000")
}

func TestOutboundTransfer_Validation(t *testing.T) {
	f := newFixture()
	uc := f.outbound()

	cases := map[string]OutboundTransferInput{
		"sem origem":    {ExternalAccount: "1", ExternalBankID: "ARCBANK", Amount: dec("1")},
		"sem conta":     {OriginAccountID: 1, ExternalBankID: "ARCBANK", Amount: dec("1")},
		"sem banco":     {OriginAccountID: 1, ExternalAccount: "1", Amount: dec("1")},
		"valor zero":    {OriginAccountID: 1, ExternalAccount: "1", ExternalBankID: "ARCBANK", Amount: decimal.Zero},
		"próprio banco": {OriginAccountID: 1, ExternalAccount: "1", ExternalBankID: "bantec", Amount: dec("1")},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), input)
			require.Error(t, err)
			assert.True(t, domain.IsBusinessError(err))
		})
	}
}

func TestOutboundTransfer_CorrelationCodeTakenStillCompletes(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.repo.seed(t, domain.Transaction{
		IdempotencyKey:  "OLD-1",
		OperationType:   domain.OperationOutboundTransfer,
		Amount:          dec("5"),
		Status:          domain.StatusCompleted,
		CorrelationCode: domain.StringPtr("123456"),
	})
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return &gateway.SwitchResponse{Success: true, Data: &gateway.SwitchResponseData{Status: "COMPLETED", CorrelationCode: "123456"}}, nil
	}

	out, err := f.outbound().Execute(context.Background(), outboundInput("K1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Transaction.Status)
	assert.Nil(t, out.Transaction.CorrelationCode)

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "K1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assertBalance(t, f, 1, "900")
	assert.Empty(t, f.peer.refunds)
}

func TestOutboundTransfer_CompensationRolledBackIsNotCreditedTwice(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	f.peer.InitiateTransferFunc = func(context.Context, gateway.TransferRequest) (*gateway.SwitchResponse, error) {
		return &gateway.SwitchResponse{Success: false, Error: &gateway.SwitchResponseError{Code: "AC01", Message: "cuenta destino no existe"}}, nil
	}
	f.repo.UpdateErr = errors.New("connection reset by peer")
	f.repo.FailUpdates = 1

	_, err := f.outbound().Execute(context.Background(), outboundInput("k-rollback"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPeerCommunication))

	// Uow não commitou: o crédito de volta foi desfeito junto
	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "k-rollback")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assertBalance(t, f, 1, "900")

	reconciler := f.reconciler(DefaultReconcilePolicy)
	reconciler.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	resolved, err := reconciler.Resolve(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, resolved.Status)
	assertBalance(t, f, 1, "1000")
}
