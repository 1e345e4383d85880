// Package webhook turns inbound, untrusted provider notifications into
// validated ledger and disbursement transitions. The HTTP layer always
// acknowledges with 200; every failure here is logged, never surfaced to the
// provider.
package webhook

import (
	"context"
	"errors"
	"log"

	"giveflow/internal/apperr"
	"giveflow/internal/models"
	"giveflow/internal/providers"
)

// Ledger is the subset of ledger transitions callbacks may trigger.
type Ledger interface {
	Find(ctx context.Context, reference string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, reference, providerReceipt string) (bool, error)
	MarkFailed(ctx context.Context, reference, reason string) (bool, error)
}

// Reconciler applies transfer-result callbacks to disbursements.
type Reconciler interface {
	Reconcile(ctx context.Context, ev providers.CallbackEvent) error
}

// Anomalies records reconciliation anomalies for alerting.
type Anomalies interface {
	RecordAnomaly(ctx context.Context, reference, detail string)
}

// Service validates and applies provider callbacks.
type Service struct {
	registry  *providers.Registry
	ledger    Ledger
	reconcile Reconciler
	anomalies Anomalies
	locks     *keyedMutex
}

func NewService(registry *providers.Registry, ledger Ledger, reconciler Reconciler, anomalies Anomalies) *Service {
	if registry == nil || ledger == nil || reconciler == nil {
		panic("registry, ledger and reconciler are required")
	}
	return &Service{
		registry:  registry,
		ledger:    ledger,
		reconcile: reconciler,
		anomalies: anomalies,
		locks:     newKeyedMutex(),
	}
}

// HandlePayment processes a payment callback. It never propagates an error;
// the HTTP endpoint acknowledges regardless to avoid provider retry storms.
func (s *Service) HandlePayment(ctx context.Context, provider string, body []byte, headers map[string]string) {
	ev, ok := s.parse(ctx, provider, body, headers)
	if !ok {
		return
	}

	switch ev.Type {
	case providers.EventPaymentCompleted, providers.EventPaymentFailed:
	default:
		log.Printf("webhook: %s payment endpoint got %s event, discarded", provider, ev.Type)
		return
	}

	tx := s.lookup(ctx, ev)
	if tx == nil {
		return
	}

	if !ev.Amount.IsZero() && !ev.Amount.Equal(tx.Amount) {
		s.anomaly(ctx, tx.Reference,
			"callback amount "+ev.Amount.String()+" does not match transaction amount "+tx.Amount.String())
		return
	}

	// Serialize transitions per transaction so racing terminal callbacks
	// cannot interleave; the lock covers only the local transition, never an
	// outbound provider call.
	s.locks.Lock(tx.Reference)
	defer s.locks.Unlock(tx.Reference)

	var changed bool
	var err error
	switch ev.Type {
	case providers.EventPaymentCompleted:
		changed, err = s.ledger.MarkCompleted(ctx, tx.Reference, ev.Receipt)
	case providers.EventPaymentFailed:
		changed, err = s.ledger.MarkFailed(ctx, tx.Reference, ev.FailureReason)
	}

	if err != nil {
		var invalid *apperr.InvalidStateTransition
		if errors.As(err, &invalid) {
			log.Printf("webhook: SEVERE invalid transition for %s: %v", tx.Reference, err)
			return
		}
		log.Printf("webhook: apply %s to %s: %v", ev.Type, tx.Reference, err)
		return
	}
	if !changed {
		// Second terminal callback lost the race; record of truth unaffected.
		s.anomaly(ctx, tx.Reference, "duplicate terminal callback "+ev.Type+" discarded")
	}
}

// HandleTransfer processes a transfer-result callback for a disbursement.
func (s *Service) HandleTransfer(ctx context.Context, provider string, body []byte, headers map[string]string) {
	ev, ok := s.parse(ctx, provider, body, headers)
	if !ok {
		return
	}

	switch ev.Type {
	case providers.EventTransferCompleted, providers.EventTransferFailed:
	default:
		log.Printf("webhook: %s transfer endpoint got %s event, discarded", provider, ev.Type)
		return
	}

	key := ev.ProviderReference
	if key == "" {
		key = ev.ClientReference
	}
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.reconcile.Reconcile(ctx, *ev); err != nil {
		var anomaly *apperr.ReconciliationAnomaly
		if errors.As(err, &anomaly) {
			s.anomaly(ctx, anomaly.Reference, anomaly.Detail)
			return
		}
		log.Printf("webhook: reconcile %s: %v", key, err)
	}
}

func (s *Service) parse(ctx context.Context, provider string, body []byte, headers map[string]string) (*providers.CallbackEvent, bool) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		log.Printf("webhook: callback for unknown provider %q discarded", provider)
		return nil, false
	}

	ev, err := adapter.ParseCallback(body, headers)
	if err != nil || ev == nil || !ev.Valid {
		// Fails closed: bad signature or malformed payload, no side effect.
		log.Printf("webhook: invalid %s callback discarded", provider)
		return nil, false
	}
	return ev, true
}

// lookup finds the transaction by embedded client reference first, then by
// provider reference. A callback alone never creates a transaction.
func (s *Service) lookup(ctx context.Context, ev *providers.CallbackEvent) *models.Transaction {
	for _, ref := range []string{ev.ClientReference, ev.ProviderReference} {
		if ref == "" {
			continue
		}
		tx, err := s.ledger.Find(ctx, ref)
		if err == nil {
			return tx
		}
	}

	ref := ev.ClientReference
	if ref == "" {
		ref = ev.ProviderReference
	}
	s.anomaly(ctx, ref, "callback for unknown reference")
	return nil
}

func (s *Service) anomaly(ctx context.Context, reference, detail string) {
	log.Printf("webhook: reconciliation anomaly for %q: %s", reference, detail)
	if s.anomalies != nil {
		s.anomalies.RecordAnomaly(ctx, reference, detail)
	}
}
