package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"giveflow/internal/models"
	"giveflow/internal/providers"
	"giveflow/internal/services/ledger"
)

const (
	// DefaultVerifyWindow is how long a processing transaction may wait for
	// its callback before the verifier asks the provider directly.
	DefaultVerifyWindow = 30 * time.Minute

	DefaultVerifyBatchSize = 50
)

// StaleScanner lists acknowledged transactions whose callback never arrived
// within the expected window.
type StaleScanner interface {
	FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
}

// Clock abstracts time for verification-window tests.
type Clock interface {
	Now() time.Time
}

// Verifier reconciles transactions stuck in processing by querying the
// provider's session status. It applies outcomes through the same guarded
// ledger transitions the webhook path uses, so a callback and a verification
// racing on the same reference cannot double-apply.
type Verifier struct {
	ledger   ledger.Service
	registry *providers.Registry
	scanner  StaleScanner
	clock    Clock
	window   time.Duration
	batch    int
}

func NewVerifier(
	ledgerSvc ledger.Service,
	registry *providers.Registry,
	scanner StaleScanner,
	clock Clock,
	window time.Duration,
	batch int,
) *Verifier {
	if ledgerSvc == nil || registry == nil || scanner == nil || clock == nil {
		panic("ledger, registry, scanner and clock are required")
	}
	if window <= 0 {
		window = DefaultVerifyWindow
	}
	if batch <= 0 {
		batch = DefaultVerifyBatchSize
	}
	return &Verifier{
		ledger:   ledgerSvc,
		registry: registry,
		scanner:  scanner,
		clock:    clock,
		window:   window,
		batch:    batch,
	}
}

// VerifyStale runs one reconciliation sweep and returns how many transactions
// it moved to a terminal state. A provider error on one transaction leaves it
// for the next sweep and never stops the scan.
func (v *Verifier) VerifyStale(ctx context.Context) (int, error) {
	cutoff := v.clock.Now().Add(-v.window)
	stale, err := v.scanner.FindStaleProcessing(ctx, cutoff, v.batch)
	if err != nil {
		return 0, fmt.Errorf("verify stale scan: %w", err)
	}

	resolved := 0
	for i := range stale {
		tx := &stale[i]
		adapter, err := v.registry.Get(tx.Provider)
		if err != nil {
			log.Printf("verifier: %s: %v", tx.Reference, err)
			continue
		}

		result, err := adapter.Verify(ctx, tx.ProviderReference)
		if err != nil {
			log.Printf("verifier: verify %s with %s: %v", tx.Reference, tx.Provider, err)
			continue
		}

		switch result.Status {
		case providers.VerifyStatusSettled:
			if !result.SettledAmount.IsZero() && !result.SettledAmount.Equal(tx.Amount) {
				log.Printf("verifier: settled amount %s does not match recorded %s for %s",
					result.SettledAmount, tx.Amount, tx.Reference)
				continue
			}
			changed, err := v.ledger.MarkCompleted(ctx, tx.Reference, result.ProviderReceipt)
			if err != nil {
				log.Printf("verifier: complete %s: %v", tx.Reference, err)
			} else if changed {
				resolved++
			}
		case providers.VerifyStatusFailed:
			changed, err := v.ledger.MarkFailed(ctx, tx.Reference, "provider verification reported failure")
			if err != nil {
				log.Printf("verifier: fail %s: %v", tx.Reference, err)
			} else if changed {
				resolved++
			}
		default:
			// still pending on the provider side; the callback or a later
			// sweep will settle it
		}
	}
	return resolved, nil
}
