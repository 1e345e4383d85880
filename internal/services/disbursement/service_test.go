package disbursement

import (
	"context"
	"errors"
	"testing"
	"time"

	"giveflow/internal/apperr"
	"giveflow/internal/config"
	"giveflow/internal/models"
	"giveflow/internal/providers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Create(ctx context.Context, d *models.Disbursement) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockRepo) FindByID(ctx context.Context, id uint) (*models.Disbursement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Disbursement), args.Error(1)
}

func (m *MockRepo) FindByTransactionID(ctx context.Context, txID uint) (*models.Disbursement, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Disbursement), args.Error(1)
}

func (m *MockRepo) FindByTransferRef(ctx context.Context, ref string) (*models.Disbursement, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Disbursement), args.Error(1)
}

func (m *MockRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Disbursement, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Disbursement), args.Error(1)
}

func (m *MockRepo) UpdateWithAudit(ctx context.Context, d *models.Disbursement, event *models.AuditEvent) error {
	args := m.Called(ctx, d, event)
	return args.Error(0)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByID(ctx context.Context, id uint) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SetDisbursementStatus(ctx context.Context, reference, status string) error {
	args := m.Called(ctx, reference, status)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DisbursementCompleted(ctx context.Context, d *models.Disbursement) {
	m.Called(ctx, d)
}

func (m *MockNotifier) DisbursementFailed(ctx context.Context, d *models.Disbursement) {
	m.Called(ctx, d)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeAdapter struct {
	name           string
	transferResult *providers.TransferResult
	transferErr    error
	transferCalls  int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Initiate(ctx context.Context, req providers.InitiateRequest) (*providers.InitiateResult, error) {
	return &providers.InitiateResult{ProviderSessionID: "sess"}, nil
}

func (f *fakeAdapter) Verify(ctx context.Context, id string) (*providers.VerifyResult, error) {
	return &providers.VerifyResult{Status: providers.VerifyStatusPending}, nil
}

func (f *fakeAdapter) Transfer(ctx context.Context, req providers.TransferRequest) (*providers.TransferResult, error) {
	f.transferCalls++
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferResult, nil
}

func (f *fakeAdapter) ParseCallback(payload []byte, headers map[string]string) (*providers.CallbackEvent, error) {
	return &providers.CallbackEvent{Valid: false}, nil
}

func testConfig() config.DisbursementConfig {
	return config.DisbursementConfig{
		PlatformFeePercentage: 2.5,
		RetryBaseHours:        1,
		MaxRetries:            3,
		ScheduleDelayMinutes:  30,
	}
}

func newEngine(repo *MockRepo, dir *MockDirectory, ledger *MockLedger, notifier *MockNotifier, clock *fakeClock, bank, momo *fakeAdapter) Service {
	registry := providers.NewRegistry(bank, momo)
	return NewService(repo, dir, registry, ledger, notifier, clock, testConfig())
}

func defaultFakes() (*fakeAdapter, *fakeAdapter) {
	bank := &fakeAdapter{name: models.ProviderBankTransfer, transferResult: &providers.TransferResult{TransferID: "tr_1"}}
	momo := &fakeAdapter{name: models.ProviderMobileMoney, transferResult: &providers.TransferResult{TransferID: "mm_1"}}
	return bank, momo
}

func TestSchedule_CreatesDisbursementWithTierFee(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	tx := models.Transaction{
		ID:             7,
		Reference:      "GF-abc",
		Provider:       models.ProviderMobileMoney,
		Amount:         decimal.NewFromInt(500),
		Currency:       "KES",
		Status:         models.TransactionStatusCompleted,
		OrganizationID: 3,
	}

	repo.On("FindByTransactionID", mock.Anything, uint(7)).Return(nil, gorm.ErrRecordNotFound)
	dir.On("FindByID", mock.Anything, uint(3)).Return(&models.Organization{
		ID: 3, FeeTier: models.FeeTierStandard,
	}, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.TransactionID == 7 &&
			d.PlatformFee.Equal(decimal.NewFromInt(11)) &&
			d.NetAmount.Equal(decimal.NewFromInt(489)) &&
			d.Status == models.DisbursementStatusPending &&
			d.MaxRetries == 3 &&
			d.NextRetryAt != nil &&
			d.NextRetryAt.Equal(clock.now.Add(30*time.Minute))
	})).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusPending).Return(nil)

	err := engine.Schedule(context.Background(), tx)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestSchedule_IsIdempotent(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	tx := models.Transaction{
		ID:             7,
		Reference:      "GF-abc",
		Provider:       models.ProviderMobileMoney,
		Amount:         decimal.NewFromInt(500),
		Status:         models.TransactionStatusCompleted,
		OrganizationID: 3,
	}

	existing := &models.Disbursement{ID: 1, TransactionID: 7}
	repo.On("FindByTransactionID", mock.Anything, uint(7)).Return(existing, nil)

	assert.NoError(t, engine.Schedule(context.Background(), tx))
	assert.NoError(t, engine.Schedule(context.Background(), tx))

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSchedule_PartnerTierHalvesFee(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	tx := models.Transaction{
		ID:             8,
		Reference:      "GF-partner",
		Provider:       models.ProviderBankTransfer,
		Amount:         decimal.NewFromInt(2000),
		Currency:       "KES",
		Status:         models.TransactionStatusCompleted,
		OrganizationID: 4,
	}

	repo.On("FindByTransactionID", mock.Anything, uint(8)).Return(nil, gorm.ErrRecordNotFound)
	dir.On("FindByID", mock.Anything, uint(4)).Return(&models.Organization{
		ID: 4, FeeTier: models.FeeTierPartner,
	}, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		// standard bank fee would be 20; partner pays 10
		return d.PlatformFee.Equal(decimal.NewFromInt(10)) &&
			d.NetAmount.Equal(decimal.NewFromInt(1990))
	})).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-partner", models.DisbursementStatusPending).Return(nil)

	assert.NoError(t, engine.Schedule(context.Background(), tx))
	repo.AssertExpectations(t)
}

func TestSchedule_RejectsNonCompletedTransaction(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	err := engine.Schedule(context.Background(), models.Transaction{
		Status: models.TransactionStatusPending,
	})
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func dueDisbursement(clock *fakeClock) *models.Disbursement {
	due := clock.now.Add(-time.Minute)
	return &models.Disbursement{
		ID:             1,
		TransactionID:  7,
		Reference:      "DSB-GF-abc",
		OrganizationID: 3,
		GrossAmount:    decimal.NewFromInt(500),
		PlatformFee:    decimal.NewFromInt(11),
		NetAmount:      decimal.NewFromInt(489),
		Currency:       "KES",
		Status:         models.DisbursementStatusPending,
		MaxRetries:     3,
		NextRetryAt:    &due,
	}
}

func TestAttempt_SuccessMovesToProcessing(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
	dir.On("FindByID", mock.Anything, uint(3)).Return(&models.Organization{
		ID:                3,
		BankAccountNumber: "0011223344",
		MobileMoneyNumber: "+254700000001",
	}, nil)
	repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.Status == models.DisbursementStatusProcessing &&
			d.TransferID == "tr_1" &&
			d.Method == models.DisbursementMethodBank &&
			d.NetAmount.Equal(decimal.NewFromInt(489))
	}), mock.Anything).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusProcessing).Return(nil)

	assert.NoError(t, engine.Attempt(context.Background(), 1))
	assert.Equal(t, 1, bank.transferCalls, "bank account preferred over mobile money")
	assert.Equal(t, 0, momo.transferCalls)
	repo.AssertExpectations(t)
}

func TestAttempt_SkipsWhenNotDue(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	future := clock.now.Add(time.Hour)
	d.NextRetryAt = &future
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)

	assert.NoError(t, engine.Attempt(context.Background(), 1))
	assert.Equal(t, 0, bank.transferCalls)
}

func TestAttempt_FailureBacksOffExponentially(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		wantDelay  time.Duration
	}{
		{"first failure waits 1h", 0, time.Hour},
		{"second failure waits 2h", 1, 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			dir := new(MockDirectory)
			ledger := new(MockLedger)
			notifier := new(MockNotifier)
			clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
			bank, momo := defaultFakes()
			bank.transferErr = apperr.Transport(models.ProviderBankTransfer, "transfer", errors.New("timeout"))
			engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

			d := dueDisbursement(clock)
			d.RetryCount = tt.retryCount
			repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
			dir.On("FindByID", mock.Anything, uint(3)).Return(&models.Organization{
				ID: 3, BankAccountNumber: "0011223344",
			}, nil)
			repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
				return d.Status == models.DisbursementStatusPendingRetry &&
					d.RetryCount == tt.retryCount+1 &&
					d.NextRetryAt != nil &&
					d.NextRetryAt.Equal(clock.now.Add(tt.wantDelay))
			}), mock.Anything).Return(nil)
			ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusPendingRetry).Return(nil)

			assert.NoError(t, engine.Attempt(context.Background(), 1))
			repo.AssertExpectations(t)
		})
	}
}

func TestAttempt_ExhaustedRetriesFailPermanently(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	bank.transferErr = apperr.Rejection(models.ProviderBankTransfer, "invalid_account", "account closed")
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusPendingRetry
	d.RetryCount = 2 // third and final attempt
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
	dir.On("FindByID", mock.Anything, uint(3)).Return(&models.Organization{
		ID: 3, BankAccountNumber: "0011223344",
	}, nil)
	repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.Status == models.DisbursementStatusFailed &&
			d.RetryCount == 3 &&
			d.NextRetryAt == nil
	}), mock.Anything).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusFailed).Return(nil)
	notifier.On("DisbursementFailed", mock.Anything, mock.Anything).Return()

	assert.NoError(t, engine.Attempt(context.Background(), 1))
	assert.True(t, d.IsTerminal())
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestReconcile_CompletesDisbursement(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusProcessing
	d.TransferID = "tr_1"
	repo.On("FindByTransferRef", mock.Anything, "tr_1").Return(d, nil)
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
	repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.Status == models.DisbursementStatusCompleted
	}), mock.Anything).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusCompleted).Return(nil)
	notifier.On("DisbursementCompleted", mock.Anything, mock.Anything).Return()

	err := engine.Reconcile(context.Background(), providers.CallbackEvent{
		Valid:             true,
		Type:              providers.EventTransferCompleted,
		ProviderReference: "tr_1",
	})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReconcile_TerminalDisbursementIsAnomaly(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusCompleted
	repo.On("FindByTransferRef", mock.Anything, "tr_1").Return(d, nil)
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)

	err := engine.Reconcile(context.Background(), providers.CallbackEvent{
		Valid:             true,
		Type:              providers.EventTransferFailed,
		ProviderReference: "tr_1",
	})

	var anomaly *apperr.ReconciliationAnomaly
	assert.ErrorAs(t, err, &anomaly)
	repo.AssertNotCalled(t, "UpdateWithAudit", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_FallsBackToClientReference(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	// the callback beat the attempt's save: no transfer id on the row yet,
	// only our own reference matches
	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusProcessing
	repo.On("FindByTransferRef", mock.Anything, "sess-99").Return(nil, gorm.ErrRecordNotFound)
	repo.On("FindByTransferRef", mock.Anything, "DSB-GF-abc").Return(d, nil)
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
	repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.Status == models.DisbursementStatusCompleted && d.TransferID == "tr_9"
	}), mock.Anything).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusCompleted).Return(nil)
	notifier.On("DisbursementCompleted", mock.Anything, mock.Anything).Return()

	err := engine.Reconcile(context.Background(), providers.CallbackEvent{
		Valid:             true,
		Type:              providers.EventTransferCompleted,
		ProviderReference: "sess-99",
		ClientReference:   "DSB-GF-abc",
		Receipt:           "tr_9",
	})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAttempt_DoesNotOverwriteReconciledDisbursement(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	// a transfer callback completes the row while the outbound call is in
	// flight; the attempt's re-read sees the terminal state and backs off
	d := dueDisbursement(clock)
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil).Once()
	completed := *d
	completed.Status = models.DisbursementStatusCompleted
	completed.TransferID = "tr_1"
	repo.On("FindByID", mock.Anything, uint(1)).Return(&completed, nil).Once()
	dir.On("FindByID", mock.Anything, uint(3)).Return(&models.Organization{
		ID: 3, BankAccountNumber: "0011223344",
	}, nil)

	assert.NoError(t, engine.Attempt(context.Background(), 1))
	assert.Equal(t, 1, bank.transferCalls)
	assert.Equal(t, models.DisbursementStatusCompleted, completed.Status)
	repo.AssertNotCalled(t, "UpdateWithAudit", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "SetDisbursementStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequeue_ResetsPermanentlyFailed(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusFailed
	d.RetryCount = 3
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)
	repo.On("UpdateWithAudit", mock.Anything, mock.MatchedBy(func(d *models.Disbursement) bool {
		return d.Status == models.DisbursementStatusPendingRetry && d.RetryCount == 0
	}), mock.MatchedBy(func(ev *models.AuditEvent) bool {
		return ev.Actor == "ops@giveflow.app" && ev.Action == "disbursement.requeue"
	})).Return(nil)
	ledger.On("SetDisbursementStatus", mock.Anything, "GF-abc", models.DisbursementStatusPendingRetry).Return(nil)

	assert.NoError(t, engine.Requeue(context.Background(), 1, "ops@giveflow.app"))
	repo.AssertExpectations(t)
}

func TestRequeue_RejectsActiveDisbursement(t *testing.T) {
	repo := new(MockRepo)
	dir := new(MockDirectory)
	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	clock := &fakeClock{now: time.Now()}
	bank, momo := defaultFakes()
	engine := newEngine(repo, dir, ledger, notifier, clock, bank, momo)

	d := dueDisbursement(clock)
	d.Status = models.DisbursementStatusProcessing
	repo.On("FindByID", mock.Anything, uint(1)).Return(d, nil)

	assert.ErrorIs(t, engine.Requeue(context.Background(), 1, "ops"), ErrNotRequeueable)
}
