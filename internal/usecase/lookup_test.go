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

func TestFindTransaction_ByReference(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "900")
	byCode := f.repo.seed(t, domain.Transaction{
		IdempotencyKey: "F1", CorrelationCode: domain.StringPtr("123456"),
		OperationType: domain.OperationDeposit, DestinationAccountID: domain.Int64Ptr(1),
		Amount: dec("1"), Status: domain.StatusCompleted,
	})
	pending := seedPendingAged(t, f, "F2", 10*time.Second)
	f.peer.QueryStatusFunc = func(context.Context, string) (*gateway.SwitchResponse, error) {
		return peerStatus("COMPLETED"), nil
	}
	uc := NewFindTransaction(f.repo, f.reconciler(DefaultReconcilePolicy))

	got, err := uc.ByReference(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, byCode.ID, got.ID)

	got, err = uc.ByReference(context.Background(), "F2")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status, "PENDING é reconciliado antes de voltar")

	got, err = uc.ByReference(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = uc.ByReference(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrTransactionNotFound))
}

func TestValidateAccount(t *testing.T) {
	f := newFixture()
	f.ledger.addAccount(1, "1000001", "0")
	f.peer.LookupAccountFunc = func(_ context.Context, bankID, number string) (*domain.AccountLookup, error) {
		if bankID == "NEXUS_BANK" {
			return &domain.AccountLookup{Exists: true, OwnerName: "Ana"}, nil
		}
		return nil, &domain.PeerError{StatusCode: 0}
	}
	uc := NewValidateAccount(f.ledger, f.peer, testBank)

	local, err := uc.Execute(context.Background(), "bantec", "1000001")
	require.NoError(t, err)
	assert.True(t, local.Exists)
	assert.Equal(t, domain.DefaultCurrency, local.Currency)

	missing, err := uc.Execute(context.Background(), testBank, "0000000")
	require.NoError(t, err)
	assert.False(t, missing.Exists)

	remote, err := uc.Execute(context.Background(), "NEXUS_BANK", "77")
	require.NoError(t, err)
	assert.Equal(t, "Ana", remote.OwnerName)

	down, err := uc.Execute(context.Background(), "ARCBANK", "77")
	require.NoError(t, err)
	assert.False(t, down.Exists)
	assert.NotEmpty(t, down.Message)

	_, err = uc.Execute(context.Background(), "ARCBANK", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDirectory_Fallbacks(t *testing.T) {
	peer := &MockSwitchPeer{
		ListRejectionReasonsFunc: func(context.Context) ([]domain.RejectionReason, error) {
			return nil, errors.New("switch down")
		},
		ListBanksFunc: func(context.Context) ([]domain.Bank, error) {
			return nil, errors.New("switch down")
		},
		HealthFunc: func(context.Context) (map[string]any, error) {
			return nil, errors.New("switch down")
		},
	}
	uc := NewDirectory(peer)

	assert.Equal(t, domain.DefaultRejectionReasons, uc.RejectionReasons(context.Background()))
	assert.Len(t, uc.Banks(context.Background()), 3)
	assert.Equal(t, "DOWN", uc.Health(context.Background())["status"])

	peer.ListBanksFunc = func(context.Context) ([]domain.Bank, error) {
		return []domain.Bank{{Code: "ARCBANK", Name: "ArcBank"}}, nil
	}
	assert.Len(t, uc.Banks(context.Background()), 1)
}
