package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"giveflow/internal/apperr"
	"giveflow/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const auditActor = "ledger"

// Cache is the subset of the cache service the ledger uses for status
// lookups.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
}

// NewService creates the transaction ledger.
func NewService(repo Repository, cache Cache, publisher Publisher) Service {
	if repo == nil {
		panic("repo is required")
	}
	return &service{repo: repo, cache: cache, publisher: publisher}
}

// Create records a new pending transaction. The reference is the idempotency
// key: a second create with the same reference returns the existing record.
func (s *service) Create(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	if req.Reference == "" {
		req.Reference = "GF-" + uuid.NewString()
	}

	tx := &models.Transaction{
		Reference:      req.Reference,
		Provider:       req.Provider,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         models.TransactionStatusPending,
		PayerContact:   req.PayerContact,
		Anonymous:      req.Anonymous,
		OrganizationID: req.OrganizationID,
		CategoryID:     req.CategoryID,
		Notes:          req.Notes,
		Metadata:       req.Metadata,
	}
	if tx.Anonymous {
		tx.PayerContact = ""
	}

	if err := s.repo.Create(ctx, tx); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.FindByReference(ctx, req.Reference)
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

// Get returns a transaction by reference, via the cache when warm.
func (s *service) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	if s.cache != nil {
		var cached models.Transaction
		if ok, err := s.cache.Get(ctx, cacheKey(reference), &cached); err == nil && ok {
			return &cached, nil
		}
	}

	tx, err := s.Find(ctx, reference)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(reference), tx); err != nil {
			log.Printf("ledger: cache set failed for %s: %v", reference, err)
		}
	}
	return tx, nil
}

// Find looks a transaction up by canonical reference, falling back to the
// provider-assigned reference for callback lookups.
func (s *service) Find(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := s.repo.FindByReference(ctx, reference)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find transaction: %w", err)
	}

	tx, err = s.repo.FindByProviderReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

// MarkProcessing records provider acceptance. The provider reference is set
// at most once and is immutable thereafter.
func (s *service) MarkProcessing(ctx context.Context, reference, providerSessionID string) error {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return err
	}

	switch tx.Status {
	case models.TransactionStatusProcessing:
		return nil // provider acknowledged twice
	case models.TransactionStatusPending:
	default:
		return apperr.BadTransition("transaction", tx.Status, models.TransactionStatusProcessing)
	}

	before := snapshot(tx)
	now := time.Now()
	tx.Status = models.TransactionStatusProcessing
	tx.InitiatedAt = &now
	if tx.ProviderReference == "" {
		tx.ProviderReference = providerSessionID
	}
	return s.save(ctx, tx, "transaction.mark_processing", before)
}

// MarkCompleted applies a successful payment result. A repeat call on an
// already-terminal transaction is a logged no-op, which is what makes
// duplicate webhook delivery safe. Returns whether the state changed.
func (s *service) MarkCompleted(ctx context.Context, reference, providerReceipt string) (bool, error) {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return false, err
	}

	if tx.IsTerminal() {
		log.Printf("ledger: mark_completed ignored, %s already %s", tx.Reference, tx.Status)
		return false, nil
	}

	before := snapshot(tx)
	now := time.Now()
	tx.Status = models.TransactionStatusCompleted
	tx.CompletedAt = &now
	if providerReceipt != "" {
		if tx.Metadata == nil {
			tx.Metadata = models.JSON{}
		}
		tx.Metadata["provider_receipt"] = providerReceipt
	}
	if err := s.save(ctx, tx, "transaction.mark_completed", before); err != nil {
		return false, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, EventTransactionCompleted, *tx)
	}
	return true, nil
}

// MarkFailed applies a failed payment result; no-op when already terminal.
func (s *service) MarkFailed(ctx context.Context, reference, reason string) (bool, error) {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return false, err
	}

	if tx.IsTerminal() {
		log.Printf("ledger: mark_failed ignored, %s already %s", tx.Reference, tx.Status)
		return false, nil
	}

	before := snapshot(tx)
	tx.Status = models.TransactionStatusFailed
	if reason != "" {
		tx.Notes = reason
	}
	if err := s.save(ctx, tx, "transaction.mark_failed", before); err != nil {
		return false, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, EventTransactionFailed, *tx)
	}
	return true, nil
}

// MarkCancelled cancels a transaction locally. Only a pending transaction may
// be cancelled; once the provider has the request there is no local cancel.
func (s *service) MarkCancelled(ctx context.Context, reference, reason string) error {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Status != models.TransactionStatusPending {
		return apperr.BadTransition("transaction", tx.Status, models.TransactionStatusCancelled)
	}

	before := snapshot(tx)
	tx.Status = models.TransactionStatusCancelled
	if reason != "" {
		tx.Notes = reason
	}
	return s.save(ctx, tx, "transaction.mark_cancelled", before)
}

// MarkRefunded moves a completed transaction to refunded.
func (s *service) MarkRefunded(ctx context.Context, reference string, refundAmount decimal.Decimal, reason string) error {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Status != models.TransactionStatusCompleted {
		return apperr.BadTransition("transaction", tx.Status, models.TransactionStatusRefunded)
	}
	if refundAmount.LessThanOrEqual(decimal.Zero) || refundAmount.GreaterThan(tx.Amount) {
		return ErrRefundExceedsAmount
	}

	before := snapshot(tx)
	tx.Status = models.TransactionStatusRefunded
	tx.RefundAmount = refundAmount
	if reason != "" {
		tx.Notes = reason
	}
	return s.save(ctx, tx, "transaction.mark_refunded", before)
}

// SetDisbursementStatus mirrors the disbursement outcome onto the parent
// transaction. The disbursement engine calls this; it never writes the
// transaction row itself.
func (s *service) SetDisbursementStatus(ctx context.Context, reference, status string) error {
	tx, err := s.Find(ctx, reference)
	if err != nil {
		return err
	}
	if tx.DisbursementStatus == status {
		return nil
	}

	before := snapshot(tx)
	tx.DisbursementStatus = status
	return s.save(ctx, tx, "transaction.set_disbursement_status", before)
}

func (s *service) save(ctx context.Context, tx *models.Transaction, action string, before models.JSON) error {
	event := &models.AuditEvent{
		Actor:      auditActor,
		Action:     action,
		EntityType: "transaction",
		EntityRef:  tx.Reference,
		Before:     before,
		After:      snapshot(tx),
	}
	if err := s.repo.UpdateWithAudit(ctx, tx, event); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(tx.Reference)); err != nil {
			log.Printf("ledger: cache invalidate failed for %s: %v", tx.Reference, err)
		}
	}
	return nil
}

func validateCreate(req *CreateRequest) error {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return apperr.Validation("amount", "must be greater than zero")
	}
	req.Currency = strings.ToUpper(req.Currency)
	if len(req.Currency) != 3 {
		return apperr.Validation("currency", "must be a 3-letter code")
	}
	if !models.SupportedProvider(req.Provider) {
		return apperr.Validation("provider", "unsupported provider "+req.Provider)
	}
	if req.OrganizationID == 0 {
		return apperr.Validation("organization_id", "is required")
	}
	return nil
}

func snapshot(tx *models.Transaction) models.JSON {
	return models.JSON{
		"status":              tx.Status,
		"provider_reference":  tx.ProviderReference,
		"disbursement_status": tx.DisbursementStatus,
		"amount":              tx.Amount.String(),
	}
}

func cacheKey(reference string) string {
	return "transaction:ref:" + reference
}
