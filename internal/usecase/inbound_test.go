package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inboundInput(id string) InboundTransferInput {
	return InboundTransferInput{
		InstructionID:            id,
		MessageID:                "MSG-ARCBANK-1",
		DestinationAccountNumber: "1000001",
		Amount:                   dec("250"),
		OriginBankID:             "ARCBANK",
	}
}

func TestInboundTransfer_CreditsOnce(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "0")
	uc := f.inboundTransfer()

	first, err := uc.Execute(context.Background(), inboundInput("X1"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, domain.StatusCompleted, first.Transaction.Status)
	assert.Equal(t, domain.OperationInboundTransfer, first.Transaction.OperationType)

	second, err := uc.Execute(context.Background(), inboundInput("X1"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assertBalance(t, f, 1, "250")
	assert.Equal(t, 1, f.repo.count())
}

func TestInboundTransfer_ConcurrentDeliveriesCreditOnce(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "0")
	uc := f.inboundTransfer()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Execute(context.Background(), inboundInput("X1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertBalance(t, f, 1, "250")
	assert.Equal(t, 1, f.repo.count())
}

func TestInboundTransfer_UnknownAccountIsAC01(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "0")

	input := inboundInput("X2")
	input.DestinationAccountNumber = "9999999"
	_, err := f.inboundTransfer().Execute(context.Background(), input)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
	assert.Equal(t, "AC01", domain.ReasonCodeOf(err))
	assert.Equal(t, 0, f.repo.count())
}

func TestInboundTransfer_RegisterFailureRevertsCredit(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "10")
	f.repo.CreateErr = errors.New("disk full")

	_, err := f.inboundTransfer().Execute(context.Background(), inboundInput("X3"))
	require.Error(t, err)
	assert.False(t, domain.IsBusinessError(err))
	assertBalance(t, f, 1, "10")
}

func seedOutbound(t *testing.T, f *fixture, key string, status domain.Status) *domain.Transaction {
	return f.repo.seed(t, domain.Transaction{
		IdempotencyKey:  key,
		OperationType:   domain.OperationOutboundTransfer,
		OriginAccountID: domain.Int64Ptr(1),
		ExternalAccount: domain.StringPtr("2200001"),
		ExternalBankID:  domain.StringPtr("ARCBANK"),
		Amount:          dec("100"),
		Status:          status,
	})
}

func returnInput(returnID, originalID string) InboundReturnInput {
	return InboundReturnInput{
		ReturnInstructionID:   returnID,
		OriginalInstructionID: originalID,
		OriginatingBankID:     "ARCBANK",
		ReasonCode:            "ac04",
		Amount:                dec("100"),
		CreationDateTime:      "2026-03-10T14:30:00",
	}
}

func TestInboundReturn_OutboundOriginalIsReturned(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	original := seedOutbound(t, f, "T1", domain.StatusCompleted)
	uc := f.inboundReturn()

	result, err := uc.Execute(context.Background(), returnInput("R1", "T1"))
	require.NoError(t, err)
	require.NotNil(t, result.Transaction)

	refund := result.Transaction
	assert.Equal(t, domain.OperationInboundRefund, refund.OperationType)
	assert.Equal(t, original.ID, *refund.ReversalOfID)
	assert.Equal(t, "AC04", domain.StringValue(refund.ReasonCode))
	assert.Equal(t, time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), refund.CreatedAt)
	assertBalance(t, f, 1, "1000")

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, stored.Status)

	// Reentrega da mesma devolução e uma segunda devolução para o mesmo original: sem crédito extra
	again, err := uc.Execute(context.Background(), returnInput("R1", "T1"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	other, err := uc.Execute(context.Background(), returnInput("R2", "T1"))
	require.NoError(t, err)
	assert.True(t, other.Duplicate)

	assertBalance(t, f, 1, "1000")
	assert.Equal(t, 2, f.repo.count())
}

func TestInboundReturn_PendingOriginalIsCompletedThenReturned(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedOutbound(t, f, "T2", domain.StatusPending)

	_, err := f.inboundReturn().Execute(context.Background(), returnInput("R3", "T2"))
	require.NoError(t, err)

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "T2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, stored.Status)
	assertBalance(t, f, 1, "1000")
}

func TestInboundReturn_FailedOriginalIsIgnored(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "1000")
	seedOutbound(t, f, "T3", domain.StatusFailed)

	result, err := f.inboundReturn().Execute(context.Background(), returnInput("R4", "T3"))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assertBalance(t, f, 1, "1000")
	assert.Equal(t, 1, f.repo.count())
}

func TestInboundReturn_InboundOriginalIsReversed(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "250")
	f.repo.seed(t, domain.Transaction{
		IdempotencyKey:       "X9",
		OperationType:        domain.OperationInboundTransfer,
		DestinationAccountID: domain.Int64Ptr(1),
		Amount:               dec("250"),
		Status:               domain.StatusCompleted,
	})

	result, err := f.inboundReturn().Execute(context.Background(), returnInput("R5", "X9"))
	require.NoError(t, err)
	assert.Equal(t, domain.OperationOutboundRefundDebit, result.Transaction.OperationType)
	assertBalance(t, f, 1, "0")

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "X9")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReversed, stored.Status)
}

func TestInboundReturn_InboundOriginalWithoutFunds(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "10")
	f.repo.seed(t, domain.Transaction{
		IdempotencyKey:       "X10",
		OperationType:        domain.OperationInboundTransfer,
		DestinationAccountID: domain.Int64Ptr(1),
		Amount:               dec("250"),
		Status:               domain.StatusCompleted,
	})

	_, err := f.inboundReturn().Execute(context.Background(), returnInput("R6", "X10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCannotReverseFunds))
	assert.Equal(t, "AM04", domain.ReasonCodeOf(err))
	assertBalance(t, f, 1, "10")
}

func TestInboundReturn_OriginalNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.inboundReturn().Execute(context.Background(), returnInput("R7", "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOriginalNotFound))
}

func TestInboundReturn_OwnBankEchoIsIgnored(t *testing.T) {
	f := newFixture()
	input := returnInput("R8", "T1")
	input.OriginatingBankID = testBank

	result, err := f.inboundReturn().Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.Ignored)
}

func TestInboundReturn_CommitFailureUndoesCredit(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedOutbound(t, f, "T4", domain.StatusCompleted)
	f.repo.CreateErr = errors.New("connection reset")

	_, err := f.inboundReturn().Execute(context.Background(), returnInput("R9", "T4"))
	require.Error(t, err)
	assertBalance(t, f, 1, "900")

	stored, err := f.repo.GetByIdempotencyKey(context.Background(), "T4")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}
