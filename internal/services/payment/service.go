// Package payment orchestrates payment initiation: it records the pending
// transaction, opens the provider session, and marks the transaction
// processing once the provider acknowledges.
package payment

import (
	"context"
	"fmt"
	"log"

	"giveflow/internal/models"
	"giveflow/internal/providers"
	"giveflow/internal/services/ledger"
)

// InitiationResult is what the caller gets back as soon as the provider
// accepts the request; completion arrives later by callback.
type InitiationResult struct {
	Transaction       *models.Transaction
	ProviderSessionID string
	RedirectURL       string
}

type Service struct {
	ledger   ledger.Service
	registry *providers.Registry
}

func NewService(ledgerSvc ledger.Service, registry *providers.Registry) *Service {
	if ledgerSvc == nil || registry == nil {
		panic("ledger and registry are required")
	}
	return &Service{ledger: ledgerSvc, registry: registry}
}

// Initiate opens a payment session. Idempotent on the client reference: a
// repeat request returns the already-created transaction.
func (s *Service) Initiate(ctx context.Context, req ledger.CreateRequest) (*InitiationResult, error) {
	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionStatusPending {
		// Repeat of an already-acknowledged request; nothing to initiate.
		return &InitiationResult{Transaction: tx, ProviderSessionID: tx.ProviderReference}, nil
	}

	result, err := adapter.Initiate(ctx, providers.InitiateRequest{
		PayerContact: req.PayerContact,
		Amount:       tx.Amount,
		Currency:     tx.Currency,
		Reference:    tx.Reference,
		Metadata:     map[string]string{"organization_id": fmt.Sprint(tx.OrganizationID)},
	})
	if err != nil {
		// The transaction stays pending; the caller may retry with the same
		// reference without creating a duplicate.
		return nil, err
	}

	if err := s.ledger.MarkProcessing(ctx, tx.Reference, result.ProviderSessionID); err != nil {
		log.Printf("payment: mark processing %s: %v", tx.Reference, err)
	}

	return &InitiationResult{
		Transaction:       tx,
		ProviderSessionID: result.ProviderSessionID,
		RedirectURL:       result.RedirectURL,
	}, nil
}
