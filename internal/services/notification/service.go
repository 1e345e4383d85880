// Package notification is the fire-and-forget interface to the messaging
// collaborator. Delivery failures never block the pipeline.
package notification

import (
	"context"
	"log"

	"giveflow/internal/models"
)

// Service is a minimal notification sink implementation.
type Service struct{}

// NewService creates a new notification service.
func NewService() *Service { return &Service{} }

// TransactionCompleted notifies the organization of a completed donation.
func (s *Service) TransactionCompleted(ctx context.Context, tx models.Transaction) {
	log.Printf("notify org %d: donation %s completed (%s %s)",
		tx.OrganizationID, tx.Reference, tx.Amount.StringFixed(2), tx.Currency)
}

// TransactionFailed notifies the organization of a failed donation attempt.
func (s *Service) TransactionFailed(ctx context.Context, tx models.Transaction) {
	log.Printf("notify org %d: donation %s failed", tx.OrganizationID, tx.Reference)
}

// DisbursementCompleted notifies the organization of a settled payout.
func (s *Service) DisbursementCompleted(ctx context.Context, d *models.Disbursement) {
	log.Printf("notify org %d: payout %s completed, net %s %s",
		d.OrganizationID, d.Reference, d.NetAmount.StringFixed(2), d.Currency)
}

// DisbursementFailed notifies operations of a permanently failed payout.
func (s *Service) DisbursementFailed(ctx context.Context, d *models.Disbursement) {
	log.Printf("notify ops: payout %s permanently failed after %d attempts: %s",
		d.Reference, d.RetryCount, d.ErrorDetail)
}
