package recurring

import (
	"context"
	"testing"
	"time"

	"giveflow/internal/models"
	"giveflow/internal/services/ledger"
	"giveflow/internal/services/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Create(ctx context.Context, plan *models.RecurringPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringPlan, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RecurringPlan), args.Error(1)
}

func (m *MockRepo) Save(ctx context.Context, plan *models.RecurringPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

type MockInitiator struct {
	mock.Mock
}

func (m *MockInitiator) Initiate(ctx context.Context, req ledger.CreateRequest) (*payment.InitiationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.InitiationResult), args.Error(1)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func activeMonthlyPlan(nextRun time.Time) models.RecurringPlan {
	return models.RecurringPlan{
		ID:             5,
		PayerContact:   "+254700000001",
		OrganizationID: 3,
		Amount:         decimal.NewFromInt(1000),
		Currency:       "KES",
		Provider:       models.ProviderMobileMoney,
		Frequency:      models.FrequencyMonthly,
		Status:         models.PlanStatusActive,
		NextRunAt:      nextRun,
	}
}

func TestCreatePlan(t *testing.T) {
	repo := new(MockRepo)
	initiator := new(MockInitiator)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewService(repo, initiator, clock)

	plan := activeMonthlyPlan(time.Time{})
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.RecurringPlan) bool {
		return p.Status == models.PlanStatusActive &&
			p.NextRunAt.Equal(clock.now.AddDate(0, 1, 0))
	})).Return(nil)

	assert.NoError(t, svc.CreatePlan(context.Background(), &plan))
	repo.AssertExpectations(t)
}

func TestCreatePlan_RejectsUnknownFrequency(t *testing.T) {
	repo := new(MockRepo)
	svc := NewService(repo, new(MockInitiator), &fakeClock{now: time.Now()})

	plan := activeMonthlyPlan(time.Time{})
	plan.Frequency = "fortnightly"

	assert.Error(t, svc.CreatePlan(context.Background(), &plan))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRunDue_InitiatesWithDeterministicReference(t *testing.T) {
	repo := new(MockRepo)
	initiator := new(MockInitiator)
	clock := &fakeClock{now: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)}
	svc := NewService(repo, initiator, clock)

	nextRun := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	plan := activeMonthlyPlan(nextRun)
	repo.On("FindDue", mock.Anything, clock.now, dueBatchSize).Return([]models.RecurringPlan{plan}, nil)
	initiator.On("Initiate", mock.Anything, mock.MatchedBy(func(req ledger.CreateRequest) bool {
		return req.Reference == "RP-5-20250615" &&
			req.Amount.Equal(decimal.NewFromInt(1000)) &&
			req.Provider == models.ProviderMobileMoney
	})).Return(&payment.InitiationResult{ProviderSessionID: "sess"}, nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(p *models.RecurringPlan) bool {
		return p.RunCount == 1 &&
			p.TotalGiven.Equal(decimal.NewFromInt(1000)) &&
			p.NextRunAt.Equal(nextRun.AddDate(0, 1, 0)) &&
			p.Status == models.PlanStatusActive
	})).Return(nil)

	assert.NoError(t, svc.RunDue(context.Background()))
	repo.AssertExpectations(t)
	initiator.AssertExpectations(t)
}

func TestRunDue_CompletesPlanPastEndDate(t *testing.T) {
	repo := new(MockRepo)
	initiator := new(MockInitiator)
	clock := &fakeClock{now: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)}
	svc := NewService(repo, initiator, clock)

	nextRun := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	end := nextRun.AddDate(0, 0, 20) // next monthly run lands after the end
	plan := activeMonthlyPlan(nextRun)
	plan.EndAt = &end

	repo.On("FindDue", mock.Anything, clock.now, dueBatchSize).Return([]models.RecurringPlan{plan}, nil)
	initiator.On("Initiate", mock.Anything, mock.Anything).Return(&payment.InitiationResult{}, nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(p *models.RecurringPlan) bool {
		return p.Status == models.PlanStatusCompleted
	})).Return(nil)

	assert.NoError(t, svc.RunDue(context.Background()))
	repo.AssertExpectations(t)
}

func TestRunDue_FailedInitiationDoesNotAdvancePlan(t *testing.T) {
	repo := new(MockRepo)
	initiator := new(MockInitiator)
	clock := &fakeClock{now: time.Now()}
	svc := NewService(repo, initiator, clock)

	plan := activeMonthlyPlan(clock.now.Add(-time.Hour))
	repo.On("FindDue", mock.Anything, clock.now, dueBatchSize).Return([]models.RecurringPlan{plan}, nil)
	initiator.On("Initiate", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	// a failed initiation is logged per plan; the scan itself still succeeds
	assert.NoError(t, svc.RunDue(context.Background()))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRunDue_OneBadPlanDoesNotStopOthers(t *testing.T) {
	repo := new(MockRepo)
	initiator := new(MockInitiator)
	clock := &fakeClock{now: time.Now()}
	svc := NewService(repo, initiator, clock)

	bad := activeMonthlyPlan(clock.now.Add(-time.Hour))
	bad.ID = 1
	good := activeMonthlyPlan(clock.now.Add(-time.Hour))
	good.ID = 2

	repo.On("FindDue", mock.Anything, clock.now, dueBatchSize).Return([]models.RecurringPlan{bad, good}, nil)
	initiator.On("Initiate", mock.Anything, mock.MatchedBy(func(req ledger.CreateRequest) bool {
		return req.Metadata["recurring_plan_id"] == uint(1)
	})).Return(nil, assert.AnError)
	initiator.On("Initiate", mock.Anything, mock.MatchedBy(func(req ledger.CreateRequest) bool {
		return req.Metadata["recurring_plan_id"] == uint(2)
	})).Return(&payment.InitiationResult{}, nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(p *models.RecurringPlan) bool {
		return p.ID == 2
	})).Return(nil)

	assert.NoError(t, svc.RunDue(context.Background()))
	repo.AssertExpectations(t)
}
