package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPendingAged(t *testing.T, f *fixture, key string, age time.Duration) *domain.Transaction {
	return f.repo.seed(t, domain.Transaction{
		IdempotencyKey:  key,
		OperationType:   domain.OperationOutboundTransfer,
		OriginAccountID: domain.Int64Ptr(1),
		ExternalBankID:  domain.StringPtr("ARCBANK"),
		Amount:          dec("100"),
		Status:          domain.StatusPending,
		CreatedAt:       time.Now().Add(-age),
	})
}

func TestResolve_ExpiredFailsWithoutAskingSwitch(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	pending := seedPendingAged(t, f, "P1", 5*time.Minute)

	resolved, err := f.reconciler(DefaultReconcilePolicy).Resolve(context.Background(), pending)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, resolved.Status)
	assert.Contains(t, resolved.Description, domain.ReasonExpired)
	assert.Equal(t, 0, f.peer.queryCalls)
	assertBalance(t, f, 1, "1000")
}

func TestResolve_ConnectionProblemFails(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	pending := seedPendingAged(t, f, "P2", 10*time.Second)
	f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
		return nil, &domain.PeerError{StatusCode: 502, Body: "bad gateway"}
	}

	resolved, err := f.reconciler(DefaultReconcilePolicy).Resolve(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, resolved.Status)
	assert.Contains(t, resolved.Description, "connection problem")
	assertBalance(t, f, 1, "1000")
}

func TestResolve_NonConnectionErrorKeepsPending(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	pending := seedPendingAged(t, f, "P3", 10*time.Second)
	f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
		return nil, &domain.PeerError{StatusCode: 401, Body: "invalid token"}
	}

	resolved, err := f.reconciler(DefaultReconcilePolicy).Resolve(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, resolved.Status)
	assertBalance(t, f, 1, "900")
}

func TestResolve_PeerStatusDecides(t *testing.T) {
	cases := []struct {
		peer    string
		want    domain.Status
		balance string
	}{
		{"COMPLETADA", domain.StatusCompleted, "900"},
		{"ACCEPTED", domain.StatusCompleted, "900"},
		{"REJECTED", domain.StatusFailed, "1000"},
		{"EN_PROCESO", domain.StatusPending, "900"},
	}
	for _, tc := range cases {
		t.Run(tc.peer, func(t *testing.T) {
			f := newFixture()
			f.ledger.addAccount(1, "1000001", "900")
			pending := seedPendingAged(t, f, "P4", 10*time.Second)
			f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
				return peerStatus(tc.peer), nil
			}

			resolved, err := f.reconciler(DefaultReconcilePolicy).Resolve(context.Background(), pending)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resolved.Status)
			assertBalance(t, f, 1, tc.balance)
		})
	}
}

func TestSettle_FirstDecisionWins(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedPendingAged(t, f, "P5", time.Second)
	s := newSettler(f.repo, f.txManager, f.ledger, f.publisher)

	failed, err := s.fail(context.Background(), "P5", "expired", "", "expired")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, failed.Status)

	// Saga atrasada tentando concluir ou falhar de novo: nada muda, nenhum crédito extra
	late, err := s.complete(context.Background(), "P5", "654321")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, late.Status)

	_, err = s.fail(context.Background(), "P5", "again", "", "expired")
	require.NoError(t, err)
	assertBalance(t, f, 1, "1000")
}

func TestQueryStatus(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedOutbound(t, f, "Q1", domain.StatusReturned)
	seedOutbound(t, f, "Q2", domain.StatusReversed)
	seedPendingAged(t, f, "Q3", 10*time.Minute)
	uc := f.reconciler(DefaultReconcilePolicy)

	cases := map[string]string{
		"Q1":      TransferStatusCompleted,
		"Q2":      TransferStatusFailed,
		"Q3":      TransferStatusFailed,
		"missing": TransferStatusNotFound,
	}
	for id, want := range cases {
		out, err := uc.QueryStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, out.Status, id)
	}

	_, err := uc.QueryStatus(context.Background(), " ")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestSweep_SkipsRecordsInsideGrace(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "800")
	seedPendingAged(t, f, "S1", 10*time.Minute)
	seedPendingAged(t, f, "S2", 5*time.Second)

	result, err := f.reconciler(ReconcilePolicy{Expiration: 3 * time.Minute, Grace: time.Minute}).Sweep(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Resolved)

	young, err := f.repo.GetByIdempotencyKey(context.Background(), "S2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, young.Status)
	assertBalance(t, f, 1, "900")
}

func TestSettle_TakenCorrelationCodeIsDropped(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedPendingAged(t, f, "P6", time.Second)
	f.repo.seed(t, domain.Transaction{
		IdempotencyKey:  "P7",
		OperationType:   domain.OperationOutboundTransfer,
		Amount:          dec("10"),
		Status:          domain.StatusCompleted,
		CorrelationCode: domain.StringPtr("654321"),
	})
	s := newSettler(f.repo, f.txManager, f.ledger, f.publisher)

	done, err := s.complete(context.Background(), "P6", "654321")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Nil(t, done.CorrelationCode)
	assert.Contains(t, f.publisher.keys(), "transaction.completed")
	assertBalance(t, f, 1, "900")
}

func TestSettle_FailedUpdateRevertsCompensation(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	seedPendingAged(t, f, "P8", time.Second)
	f.repo.UpdateErr = errors.New("connection reset by peer")
	f.repo.FailUpdates = 1
	s := newSettler(f.repo, f.txManager, f.ledger, f.publisher)

	_, err := s.fail(context.Background(), "P8", "rejected", "AC01", "peer_rejected")
	require.Error(t, err)
	assertBalance(t, f, 1, "900")

	failed, err := s.fail(context.Background(), "P8", "rejected", "AC01", "peer_rejected")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assertBalance(t, f, 1, "1000")
}
