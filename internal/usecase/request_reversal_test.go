package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) reversal() *RequestReversalUseCase {
	return NewRequestReversal(f.repo, f.txManager, f.ledger, f.peer, f.publisher,
		f.reconciler(DefaultReconcilePolicy), testBank)
}

func TestRequestReversal_CompletedOutbound(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	original := seedOutbound(t, f, "V1", domain.StatusCompleted)
	uc := f.reversal()

	out, err := uc.Execute(context.Background(), ReversalInput{TransactionID: original.ID, ReasonCode: "FRAUD"})
	require.NoError(t, err)

	assert.Equal(t, domain.OperationInboundRefund, out.Transaction.OperationType)
	assert.Equal(t, "FRAD", domain.StringValue(out.Transaction.ReasonCode))
	assert.Equal(t, original.ID, *out.Transaction.ReversalOfID)
	assertBalance(t, f, 1, "1000")

	require.Len(t, f.peer.refunds, 1)
	assert.Equal(t, "V1", f.peer.refunds[0].Body.OriginalInstructionID)
	assert.Equal(t, "FRAD", f.peer.refunds[0].Body.ReturnReason)

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "V1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReversed, stored.Status)

	_, err = uc.Execute(context.Background(), ReversalInput{TransactionID: original.ID, ReasonCode: "FRAUD"})
	assert.True(t, errors.Is(err, domain.ErrAlreadyReversed))
	assertBalance(t, f, 1, "1000")
}

func TestRequestReversal_ByCorrelationCodeToleratesUnknownOriginal(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	f.repo.seed(t, domain.Transaction{
		IdempotencyKey:  "V2",
		CorrelationCode: domain.StringPtr("482913"),
		OperationType:   domain.OperationOutboundTransfer,
		OriginAccountID: domain.Int64Ptr(1),
		Amount:          dec("100"),
		Status:          domain.StatusCompleted,
	})
	f.peer.RequestRefundFunc = func(context.Context, gateway.RefundRequest) (*gateway.SwitchResponse, error) {
		return nil, &domain.PeerError{StatusCode: 409, Body: "original instruction not found"}
	}

	out, err := f.reversal().Execute(context.Background(), ReversalInput{CorrelationCode: "482913", ReasonCode: "AC03"})
	require.NoError(t, err)
	assert.Equal(t, "AC03", domain.StringValue(out.Transaction.ReasonCode))
	assertBalance(t, f, 1, "1000")
}

func TestRequestReversal_SwitchRefusal(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	original := seedOutbound(t, f, "V3", domain.StatusCompleted)
	f.peer.RequestRefundFunc = func(context.Context, gateway.RefundRequest) (*gateway.SwitchResponse, error) {
		return &gateway.SwitchResponse{Error: &gateway.SwitchResponseError{Code: "AG01", Message: "return window closed"}}, nil
	}

	_, err := f.reversal().Execute(context.Background(), ReversalInput{TransactionID: original.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPeerRejected))
	assertBalance(t, f, 1, "900")
}

func TestRequestReversal_Rules(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	failed := seedOutbound(t, f, "V4", domain.StatusFailed)
	inbound := f.repo.seed(t, domain.Transaction{
		IdempotencyKey:       "V5",
		OperationType:        domain.OperationInboundTransfer,
		DestinationAccountID: domain.Int64Ptr(1),
		Amount:               dec("10"),
		Status:               domain.StatusCompleted,
	})
	uc := f.reversal()

	_, err := uc.Execute(context.Background(), ReversalInput{TransactionID: failed.ID})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = uc.Execute(context.Background(), ReversalInput{TransactionID: inbound.ID})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = uc.Execute(context.Background(), ReversalInput{TransactionID: 999})
	assert.True(t, errors.Is(err, domain.ErrOriginalNotFound))

	_, err = uc.Execute(context.Background(), ReversalInput{})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.Empty(t, f.peer.refunds)
}
