package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memoryRepository é um Transaction Store em memória que respeita as mesmas
// restrições únicas do Postgres (chave, correlação, reversal_of_id).
type memoryRepository struct {
	mu     sync.Mutex
	rows   map[int64]domain.Transaction
	nextID int64

	CreateErr error
	// UpdateErr falha os próximos FailUpdates Update.
	UpdateErr   error
	FailUpdates int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: map[int64]domain.Transaction{}}
}

func (r *memoryRepository) Create(_ context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	for _, row := range r.rows {
		if row.IdempotencyKey == t.IdempotencyKey {
			return domain.ErrDuplicateRequest
		}
		if t.CorrelationCode != nil && row.CorrelationCode != nil && *row.CorrelationCode == *t.CorrelationCode {
			return domain.ErrDuplicateRequest
		}
		if t.ReversalOfID != nil && row.ReversalOfID != nil && *row.ReversalOfID == *t.ReversalOfID {
			return domain.ErrDuplicateRequest
		}
	}
	r.nextID++
	t.ID = r.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.rows[t.ID] = *t
	return nil
}

func (r *memoryRepository) Update(_ context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdates > 0 {
		r.FailUpdates--
		return r.UpdateErr
	}
	row, ok := r.rows[t.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if t.CorrelationCode != nil {
		for id, other := range r.rows {
			if id != t.ID && other.CorrelationCode != nil && *other.CorrelationCode == *t.CorrelationCode {
				return domain.ErrDuplicateRequest
			}
		}
	}
	row.Status = t.Status
	row.Description = t.Description
	row.ResultingBalance = t.ResultingBalance
	row.ResultingBalanceDestination = t.ResultingBalanceDestination
	if t.CorrelationCode != nil {
		row.CorrelationCode = t.CorrelationCode
	}
	if t.ReasonCode != nil {
		row.ReasonCode = t.ReasonCode
	}
	r.rows[t.ID] = row
	return nil
}

func (r *memoryRepository) find(match func(domain.Transaction) bool) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if match(row) {
			found := row
			return &found, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *memoryRepository) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.ID == id })
}

func (r *memoryRepository) GetByIdempotencyKey(_ context.Context, key string) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.IdempotencyKey == key })
}

func (r *memoryRepository) GetByCorrelationCode(_ context.Context, code string) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.CorrelationCode != nil && *t.CorrelationCode == code })
}

func (r *memoryRepository) GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.GetByIdempotencyKey(ctx, key)
}

func (r *memoryRepository) GetReversalOf(_ context.Context, originalID int64) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.ReversalOfID != nil && *t.ReversalOfID == originalID })
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID int64) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, row := range r.rows {
		if (row.OriginAccountID != nil && *row.OriginAccountID == accountID) ||
			(row.DestinationAccountID != nil && *row.DestinationAccountID == accountID) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepository) ListPendingBefore(_ context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, row := range r.rows {
		if row.Status == domain.StatusPending && row.CreatedAt.Before(createdBefore) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LockKey não faz nada: o fakeTxManager já serializa as unidades de trabalho.
func (r *memoryRepository) LockKey(context.Context, string) error { return nil }

func (r *memoryRepository) WithTx(gateway.TransactionObject) gateway.TransactionRepository { return r }

func (r *memoryRepository) snapshot() (map[int64]domain.Transaction, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[int64]domain.Transaction, len(r.rows))
	for k, v := range r.rows {
		copied[k] = v
	}
	return copied, r.nextID
}

func (r *memoryRepository) restore(rows map[int64]domain.Transaction, nextID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows, r.nextID = rows, nextID
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// seed insere um registro direto, sem regras, para montar cenários.
func (r *memoryRepository) seed(t *testing.T, tx domain.Transaction) *domain.Transaction {
	t.Helper()
	require.NoError(t, r.Create(context.Background(), &tx))
	return &tx
}

// fakeTxManager serializa os Run (como os locks do Postgres fariam) e desfaz as escritas
// no repositório quando a função retorna erro.
type fakeTxManager struct {
	mu   sync.Mutex
	repo *memoryRepository
	runs int
}

func (m *fakeTxManager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(gateway.TransactionKey) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++

	rows, nextID := m.repo.snapshot()
	if err := fn(context.WithValue(ctx, gateway.TransactionKey, "tx")); err != nil {
		m.repo.restore(rows, nextID)
		return err
	}
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[int64]decimal.Decimal
	accounts map[int64]domain.Account

	SetBalanceErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[int64]decimal.Decimal{}, accounts: map[int64]domain.Account{}}
}

func (l *fakeLedger) addAccount(id int64, number, balance string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] = decimal.RequireFromString(balance)
	l.accounts[id] = domain.Account{
		ID: id, AccountNumber: number, OwnerName: "Owner " + number,
		Status: domain.AccountStatusActive, Currency: domain.DefaultCurrency,
	}
}

func (l *fakeLedger) balance(id int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func (l *fakeLedger) GetBalance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[accountID]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return b, nil
}

func (l *fakeLedger) SetBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SetBalanceErr != nil {
		return l.SetBalanceErr
	}
	l.balances[accountID] = balance
	return nil
}

func (l *fakeLedger) GetAccount(_ context.Context, accountID int64) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	a.Balance = l.balances[accountID]
	return &a, nil
}

func (l *fakeLedger) FindAccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.accounts {
		if a.AccountNumber == number {
			found := a
			found.Balance = l.balances[a.ID]
			return &found, nil
		}
	}
	return nil, nil
}

// MockSwitchPeer segue o padrão XxxFunc; sem função configurada devolve sucesso neutro.
type MockSwitchPeer struct {
	mu sync.Mutex

	InitiateTransferFunc     func(ctx context.Context, request gateway.TransferRequest) (*gateway.SwitchResponse, error)
	QueryStatusFunc          func(ctx context.Context, instructionID string) (*gateway.SwitchResponse, error)
	RequestRefundFunc        func(ctx context.Context, request gateway.RefundRequest) (*gateway.SwitchResponse, error)
	ListRejectionReasonsFunc func(ctx context.Context) ([]domain.RejectionReason, error)
	LookupAccountFunc        func(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error)
	SendStatusReportFunc     func(ctx context.Context, report gateway.StatusReport) error
	ListBanksFunc            func(ctx context.Context) ([]domain.Bank, error)
	HealthFunc               func(ctx context.Context) (map[string]any, error)

	initiateCalls int
	queryCalls    int
	refunds       []gateway.RefundRequest
	reports       []gateway.StatusReport
}

func (m *MockSwitchPeer) InitiateTransfer(ctx context.Context, request gateway.TransferRequest) (*gateway.SwitchResponse, error) {
	m.mu.Lock()
	m.initiateCalls++
	m.mu.Unlock()
	if m.InitiateTransferFunc != nil {
		return m.InitiateTransferFunc(ctx, request)
	}
	return peerStatus("COMPLETED"), nil
}

func (m *MockSwitchPeer) QueryStatus(ctx context.Context, instructionID string) (*gateway.SwitchResponse, error) {
	m.mu.Lock()
	m.queryCalls++
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, instructionID)
	}
	return peerStatus("PENDING"), nil
}

func (m *MockSwitchPeer) RequestRefund(ctx context.Context, request gateway.RefundRequest) (*gateway.SwitchResponse, error) {
	m.mu.Lock()
	m.refunds = append(m.refunds, request)
	m.mu.Unlock()
	if m.RequestRefundFunc != nil {
		return m.RequestRefundFunc(ctx, request)
	}
	return &gateway.SwitchResponse{Success: true}, nil
}

func (m *MockSwitchPeer) ListRejectionReasons(ctx context.Context) ([]domain.RejectionReason, error) {
	if m.ListRejectionReasonsFunc != nil {
		return m.ListRejectionReasonsFunc(ctx)
	}
	return nil, nil
}

func (m *MockSwitchPeer) LookupAccount(ctx context.Context, bankID, accountNumber string) (*domain.AccountLookup, error) {
	if m.LookupAccountFunc != nil {
		return m.LookupAccountFunc(ctx, bankID, accountNumber)
	}
	return &domain.AccountLookup{Exists: true}, nil
}

func (m *MockSwitchPeer) SendStatusReport(ctx context.Context, report gateway.StatusReport) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	if m.SendStatusReportFunc != nil {
		return m.SendStatusReportFunc(ctx, report)
	}
	return nil
}

func (m *MockSwitchPeer) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	if m.ListBanksFunc != nil {
		return m.ListBanksFunc(ctx)
	}
	return nil, nil
}

func (m *MockSwitchPeer) Health(ctx context.Context) (map[string]any, error) {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return map[string]any{"status": "UP"}, nil
}

func peerStatus(status string) *gateway.SwitchResponse {
	return &gateway.SwitchResponse{Success: true, Data: &gateway.SwitchResponseData{Status: status}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, _, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// fixture junta os fakes e os use cases ligados a eles.
type fixture struct {
	repo      *memoryRepository
	txManager *fakeTxManager
	ledger    *fakeLedger
	peer      *MockSwitchPeer
	publisher *recordingPublisher
}

const testBank = "BANTEC"

func newFixture() *fixture {
	repo := newMemoryRepository()
	return &fixture{
		repo:      repo,
		txManager: &fakeTxManager{repo: repo},
		ledger:    newFakeLedger(),
		peer:      &MockSwitchPeer{},
		publisher: &recordingPublisher{},
	}
}

func (f *fixture) outbound() *OutboundTransferUseCase {
	uc := NewOutboundTransfer(f.repo, f.txManager, f.ledger, f.peer, f.publisher, testBank,
		PollingPolicy{Interval: time.Millisecond, MaxAttempts: 3})
	uc.sleep = func(context.Context, time.Duration) error { return nil }
	return uc
}

func (f *fixture) reconciler(policy ReconcilePolicy) *ReconcileUseCase {
	return NewReconcile(f.repo, f.txManager, f.ledger, f.peer, f.publisher, policy)
}

func (f *fixture) inboundTransfer() *InboundTransferUseCase {
	return NewInboundTransfer(f.repo, f.txManager, f.ledger, f.publisher)
}

func (f *fixture) inboundReturn() *InboundReturnUseCase {
	return NewInboundReturn(f.repo, f.txManager, f.ledger, f.publisher, testBank)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
