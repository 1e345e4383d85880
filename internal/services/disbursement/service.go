package disbursement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"giveflow/internal/apperr"
	"giveflow/internal/config"
	"giveflow/internal/models"
	"giveflow/internal/providers"

	"gorm.io/gorm"
)

type service struct {
	repo     Repository
	orgs     Directory
	registry *providers.Registry
	ledger   LedgerWriter
	fees     *FeeSchedule
	notifier Notifier
	clock    Clock
	locks    *keyedMutex
	cfg      config.DisbursementConfig
}

// NewService creates the disbursement engine. The configuration is explicit
// rather than read from globals.
func NewService(
	repo Repository,
	orgs Directory,
	registry *providers.Registry,
	ledger LedgerWriter,
	notifier Notifier,
	clock Clock,
	cfg config.DisbursementConfig,
) Service {
	if repo == nil || orgs == nil || registry == nil || ledger == nil {
		panic("repo, orgs, registry and ledger are required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBaseHours <= 0 {
		cfg.RetryBaseHours = DefaultRetryBaseHours
	}
	if cfg.ScheduleDelayMinutes < 0 {
		cfg.ScheduleDelayMinutes = DefaultScheduleDelayMinutes
	}
	return &service{
		repo:     repo,
		orgs:     orgs,
		registry: registry,
		ledger:   ledger,
		fees:     NewFeeSchedule(cfg.PlatformFeePercentage),
		notifier: notifier,
		clock:    clock,
		locks:    newKeyedMutex(),
		cfg:      cfg,
	}
}

// Schedule creates the disbursement for a completed transaction, delayed by
// the chargeback window. No-ops if one already exists, so replayed
// completion events never create a second payout.
func (s *service) Schedule(ctx context.Context, tx models.Transaction) error {
	if tx.Status != models.TransactionStatusCompleted {
		return ErrNotCompleted
	}

	if _, err := s.repo.FindByTransactionID(ctx, tx.ID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("schedule disbursement: %w", err)
	}

	tier := models.FeeTierStandard
	if org, err := s.orgs.FindByID(ctx, tx.OrganizationID); err == nil {
		tier = org.FeeTier
	}
	fee := s.fees.FeeForTier(tx.Amount, tx.Provider, tier)
	firstAttempt := s.clock.Now().Add(time.Duration(s.cfg.ScheduleDelayMinutes) * time.Minute)
	d := &models.Disbursement{
		TransactionID:  tx.ID,
		Reference:      "DSB-" + tx.Reference,
		OrganizationID: tx.OrganizationID,
		GrossAmount:    tx.Amount,
		PlatformFee:    fee,
		NetAmount:      tx.Amount.Sub(fee),
		Currency:       tx.Currency,
		Status:         models.DisbursementStatusPending,
		MaxRetries:     s.cfg.MaxRetries,
		NextRetryAt:    &firstAttempt,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // raced with another scheduler, first one wins
		}
		return fmt.Errorf("schedule disbursement: %w", err)
	}

	if err := s.ledger.SetDisbursementStatus(ctx, tx.Reference, models.DisbursementStatusPending); err != nil {
		log.Printf("disbursement: mirror pending status for %s: %v", tx.Reference, err)
	}
	return nil
}

// Attempt runs one payout attempt. The outbound transfer call happens with no
// lock held; only the local state transition is guarded.
func (s *service) Attempt(ctx context.Context, id uint) error {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("attempt disbursement: %w", err)
	}

	switch d.Status {
	case models.DisbursementStatusPending, models.DisbursementStatusPendingRetry:
	default:
		log.Printf("disbursement: attempt skipped, %s is %s", d.Reference, d.Status)
		return nil
	}
	if d.NextRetryAt != nil && s.clock.Now().Before(*d.NextRetryAt) {
		return nil // not due yet
	}

	org, err := s.orgs.FindByID(ctx, d.OrganizationID)
	if err != nil {
		return s.failUnderLock(ctx, d, fmt.Sprintf("resolve organization %d: %v", d.OrganizationID, err))
	}
	method, destination := org.PayoutDestination()
	if method == "" {
		return s.failUnderLock(ctx, d, ErrNoDestination.Error())
	}

	adapter, err := s.registry.Get(adapterFor(method))
	if err != nil {
		return s.failUnderLock(ctx, d, err.Error())
	}

	result, transferErr := adapter.Transfer(ctx, providers.TransferRequest{
		Destination: destination,
		Amount:      d.GrossAmount.Sub(d.PlatformFee),
		Currency:    d.Currency,
		Reference:   d.Reference,
		Reason:      "donation payout",
	})

	// The transfer ran with no lock held. A result callback may have already
	// reconciled the row in that window, so re-read it under the lock before
	// transitioning and never write over a terminal state.
	s.locks.Lock(d.Reference)
	defer s.locks.Unlock(d.Reference)

	fresh, err := s.repo.FindByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("attempt disbursement: %w", err)
	}
	if fresh.IsTerminal() {
		log.Printf("disbursement: attempt result for %s discarded, already %s", fresh.Reference, fresh.Status)
		return nil
	}

	// net_amount is recomputed from the stored fee on every save, never
	// trusted from earlier state.
	fresh.Method = method
	fresh.Destination = destination
	fresh.NetAmount = fresh.GrossAmount.Sub(fresh.PlatformFee)

	if transferErr != nil {
		return s.failAttempt(ctx, fresh, transferErr.Error())
	}

	before := snapshot(fresh)
	fresh.Status = models.DisbursementStatusProcessing
	fresh.TransferID = result.TransferID
	fresh.NextRetryAt = nil
	fresh.ErrorDetail = ""
	if err := s.save(ctx, fresh, "disbursement.attempt", before); err != nil {
		return err
	}
	return s.mirror(ctx, fresh, models.DisbursementStatusProcessing)
}

// failUnderLock records a pre-transfer attempt failure under the per-reference
// lock, re-reading the row first so a concurrent reconciliation is never
// overwritten.
func (s *service) failUnderLock(ctx context.Context, d *models.Disbursement, detail string) error {
	s.locks.Lock(d.Reference)
	defer s.locks.Unlock(d.Reference)

	fresh, err := s.repo.FindByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("attempt disbursement: %w", err)
	}
	if fresh.IsTerminal() {
		log.Printf("disbursement: attempt failure for %s discarded, already %s", fresh.Reference, fresh.Status)
		return nil
	}
	return s.failAttempt(ctx, fresh, detail)
}

// Reconcile applies a transfer-result callback. Terminal states are
// immutable; a late or duplicate result on a terminal record is a
// reconciliation anomaly.
func (s *service) Reconcile(ctx context.Context, ev providers.CallbackEvent) error {
	found, err := s.lookup(ctx, ev)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Anomaly(callbackRef(ev), "transfer callback for unknown disbursement")
		}
		return fmt.Errorf("reconcile disbursement: %w", err)
	}

	// Serialize with concurrent attempts on the same row, then re-read: the
	// state may have moved between the lookup and the lock.
	s.locks.Lock(found.Reference)
	defer s.locks.Unlock(found.Reference)

	d, err := s.repo.FindByID(ctx, found.ID)
	if err != nil {
		return fmt.Errorf("reconcile disbursement: %w", err)
	}

	if d.IsTerminal() {
		return apperr.Anomaly(d.Reference, "transfer callback on terminal disbursement "+d.Status)
	}

	switch ev.Type {
	case providers.EventTransferCompleted:
		before := snapshot(d)
		d.Status = models.DisbursementStatusCompleted
		d.NetAmount = d.GrossAmount.Sub(d.PlatformFee)
		d.NextRetryAt = nil
		d.ErrorDetail = ""
		if ev.Receipt != "" && d.TransferID == "" {
			d.TransferID = ev.Receipt
		}
		if err := s.save(ctx, d, "disbursement.reconcile", before); err != nil {
			return err
		}
		if s.notifier != nil {
			s.notifier.DisbursementCompleted(ctx, d)
		}
		return s.mirror(ctx, d, models.DisbursementStatusCompleted)

	case providers.EventTransferFailed:
		reason := ev.FailureReason
		if reason == "" {
			reason = "transfer failed"
		}
		return s.failAttempt(ctx, d, reason)
	}
	return apperr.Anomaly(d.Reference, "unexpected transfer event "+ev.Type)
}

// Requeue resets a permanently failed disbursement. This is the only path
// back from exhausted retries and it requires an operator.
func (s *service) Requeue(ctx context.Context, id uint, actor string) error {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("requeue disbursement: %w", err)
	}
	if d.Status != models.DisbursementStatusFailed || d.RetryCount < d.MaxRetries {
		return ErrNotRequeueable
	}

	before := snapshot(d)
	now := s.clock.Now()
	d.Status = models.DisbursementStatusPendingRetry
	d.RetryCount = 0
	d.NextRetryAt = &now
	d.ErrorDetail = ""
	event := &models.AuditEvent{
		Actor:      actor,
		Action:     "disbursement.requeue",
		EntityType: "disbursement",
		EntityRef:  d.Reference,
		Before:     before,
		After:      snapshot(d),
	}
	if err := s.repo.UpdateWithAudit(ctx, d, event); err != nil {
		return fmt.Errorf("disbursement.requeue: %w", err)
	}
	return s.mirror(ctx, d, models.DisbursementStatusPendingRetry)
}

func (s *service) GetForTransaction(ctx context.Context, txID uint) (*models.Disbursement, error) {
	d, err := s.repo.FindByTransactionID(ctx, txID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Due returns disbursements ready for an attempt.
func (s *service) Due(ctx context.Context, limit int) ([]models.Disbursement, error) {
	if limit <= 0 {
		limit = DefaultDueBatchSize
	}
	return s.repo.FindDue(ctx, s.clock.Now(), limit)
}

// lookup resolves a transfer-result callback to its disbursement. The
// provider's transfer id is tried first, then the client reference: a
// callback can beat the attempt's own save, in which case only our reference
// is on the row yet.
func (s *service) lookup(ctx context.Context, ev providers.CallbackEvent) (*models.Disbursement, error) {
	for _, ref := range []string{ev.ProviderReference, ev.ClientReference} {
		if ref == "" {
			continue
		}
		d, err := s.repo.FindByTransferRef(ctx, ref)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// callbackRef picks the reference to report for an unmatched callback.
func callbackRef(ev providers.CallbackEvent) string {
	if ev.ProviderReference != "" {
		return ev.ProviderReference
	}
	return ev.ClientReference
}

// failAttempt consumes one unit of the retry budget. Backoff doubles each
// retry: the nth retry waits 2^(n-1) base hours.
func (s *service) failAttempt(ctx context.Context, d *models.Disbursement, detail string) error {
	before := snapshot(d)
	d.RetryCount++
	d.ErrorDetail = detail
	d.NetAmount = d.GrossAmount.Sub(d.PlatformFee)

	if d.RetryCount < d.MaxRetries {
		delay := time.Duration(math.Pow(2, float64(d.RetryCount-1))) *
			time.Duration(s.cfg.RetryBaseHours) * time.Hour
		next := s.clock.Now().Add(delay)
		d.Status = models.DisbursementStatusPendingRetry
		d.NextRetryAt = &next
		if err := s.save(ctx, d, "disbursement.fail_attempt", before); err != nil {
			return err
		}
		return s.mirror(ctx, d, models.DisbursementStatusPendingRetry)
	}

	d.Status = models.DisbursementStatusFailed
	d.NextRetryAt = nil
	if err := s.save(ctx, d, "disbursement.fail_permanent", before); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.DisbursementFailed(ctx, d)
	}
	return s.mirror(ctx, d, models.DisbursementStatusFailed)
}

// mirror pushes the disbursement status onto the parent transaction through
// the ledger.
func (s *service) mirror(ctx context.Context, d *models.Disbursement, status string) error {
	reference := parentReference(d)
	if err := s.ledger.SetDisbursementStatus(ctx, reference, status); err != nil {
		log.Printf("disbursement: mirror %s status for %s: %v", status, reference, err)
	}
	return nil
}

func (s *service) save(ctx context.Context, d *models.Disbursement, action string, before models.JSON) error {
	event := &models.AuditEvent{
		Actor:      "disbursement-engine",
		Action:     action,
		EntityType: "disbursement",
		EntityRef:  d.Reference,
		Before:     before,
		After:      snapshot(d),
	}
	if err := s.repo.UpdateWithAudit(ctx, d, event); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// adapterFor maps a payout method to the provider whose adapter executes it.
func adapterFor(method string) string {
	if method == models.DisbursementMethodMobileMoney {
		return models.ProviderMobileMoney
	}
	return models.ProviderBankTransfer
}

// parentReference recovers the transaction reference from the disbursement
// reference prefix.
func parentReference(d *models.Disbursement) string {
	const prefix = "DSB-"
	if len(d.Reference) > len(prefix) && d.Reference[:len(prefix)] == prefix {
		return d.Reference[len(prefix):]
	}
	return d.Reference
}

func snapshot(d *models.Disbursement) models.JSON {
	return models.JSON{
		"status":      d.Status,
		"retry_count": d.RetryCount,
		"transfer_id": d.TransferID,
		"net_amount":  d.NetAmount.String(),
	}
}
