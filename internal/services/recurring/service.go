// Package recurring runs scheduled giving plans. Each due plan produces one
// transaction per period through the same initiation contract as a one-off
// donation.
package recurring

import (
	"context"
	"fmt"
	"log"
	"time"

	"giveflow/internal/models"
	"giveflow/internal/services/ledger"
	"giveflow/internal/services/payment"
)

// Repository is the persistence contract for plans.
type Repository interface {
	Create(ctx context.Context, plan *models.RecurringPlan) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringPlan, error)
	Save(ctx context.Context, plan *models.RecurringPlan) error
}

// Initiator opens payment sessions; satisfied by the payment service.
type Initiator interface {
	Initiate(ctx context.Context, req ledger.CreateRequest) (*payment.InitiationResult, error)
}

// Clock abstracts time for scheduling tests.
type Clock interface {
	Now() time.Time
}

const dueBatchSize = 50

type Service struct {
	repo     Repository
	payments Initiator
	clock    Clock
}

func NewService(repo Repository, payments Initiator, clock Clock) *Service {
	return &Service{repo: repo, payments: payments, clock: clock}
}

// CreatePlan registers a new giving plan. The first run happens one period
// after creation.
func (s *Service) CreatePlan(ctx context.Context, plan *models.RecurringPlan) error {
	switch plan.Frequency {
	case models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	default:
		return fmt.Errorf("unsupported frequency %q", plan.Frequency)
	}

	plan.Status = models.PlanStatusActive
	plan.Advance(s.clock.Now())
	if err := s.repo.Create(ctx, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// RunDue initiates one transaction for every plan whose period has elapsed.
// The per-period reference makes a rerun of the same scan idempotent.
func (s *Service) RunDue(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.repo.FindDue(ctx, now, dueBatchSize)
	if err != nil {
		return fmt.Errorf("scan due plans: %w", err)
	}

	for i := range due {
		plan := &due[i]
		if err := s.runPlan(ctx, plan, now); err != nil {
			log.Printf("recurring: plan %d: %v", plan.ID, err)
		}
	}
	return nil
}

func (s *Service) runPlan(ctx context.Context, plan *models.RecurringPlan, now time.Time) error {
	reference := fmt.Sprintf("RP-%d-%s", plan.ID, plan.NextRunAt.Format("20060102"))

	_, err := s.payments.Initiate(ctx, ledger.CreateRequest{
		Reference:      reference,
		Amount:         plan.Amount,
		Currency:       plan.Currency,
		Provider:       plan.Provider,
		PayerContact:   plan.PayerContact,
		OrganizationID: plan.OrganizationID,
		CategoryID:     plan.CategoryID,
		Metadata:       models.JSON{"recurring_plan_id": plan.ID},
	})
	if err != nil {
		return fmt.Errorf("initiate: %w", err)
	}

	plan.Advance(plan.NextRunAt)
	plan.RunCount++
	plan.TotalGiven = plan.TotalGiven.Add(plan.Amount)
	if plan.EndAt != nil && !plan.NextRunAt.Before(*plan.EndAt) {
		plan.Status = models.PlanStatusCompleted
	}
	return s.repo.Save(ctx, plan)
}
