package providers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"giveflow/internal/apperr"
	"giveflow/internal/config"
	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

// BankAdapter integrates a bank-transfer aggregator. Everything is
// asynchronous: charges and disbursements are accepted immediately and
// resolved by callback, authenticated with a shared callback token.
type BankAdapter struct {
	creds  config.ProviderCredentials
	client *http.Client
}

func NewBankAdapter(creds config.ProviderCredentials) *BankAdapter {
	return &BankAdapter{
		creds:  creds,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *BankAdapter) Name() string { return models.ProviderBankTransfer }

type bankCharge struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
	FailCode   string `json:"failure_code"`
}

// Initiate registers an expected inbound bank transfer. The aggregator
// assigns a virtual account and notifies us by callback once funds land.
func (a *BankAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body := map[string]string{
		"external_id": req.Reference,
		"amount":      req.Amount.StringFixed(2),
		"currency":    req.Currency,
		"payer":       req.PayerContact,
	}

	var charge bankCharge
	if err := a.post(ctx, "/charges", body, &charge); err != nil {
		return nil, err
	}
	return &InitiateResult{ProviderSessionID: charge.ID}, nil
}

func (a *BankAdapter) Verify(ctx context.Context, chargeID string) (*VerifyResult, error) {
	var charge bankCharge
	if err := a.get(ctx, "/charges/"+url.PathEscape(chargeID), &charge); err != nil {
		return nil, err
	}

	amount, _ := decimal.NewFromString(charge.Amount)
	result := &VerifyResult{SettledAmount: amount, ProviderReceipt: charge.ID}
	switch charge.Status {
	case "SETTLED":
		result.Status = VerifyStatusSettled
	case "FAILED", "EXPIRED":
		result.Status = VerifyStatusFailed
	default:
		result.Status = VerifyStatusPending
	}
	return result, nil
}

type bankDisbursement struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	FailCode   string `json:"failure_code"`
	Message    string `json:"message"`
}

// Transfer disburses to a bank account. Idempotent on external_id: the
// aggregator is queried for an existing disbursement before creating one.
func (a *BankAdapter) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var existing []bankDisbursement
	if err := a.get(ctx, "/disbursements?external_id="+url.QueryEscape(req.Reference), &existing); err == nil &&
		len(existing) > 0 {
		return &TransferResult{TransferID: existing[0].ID}, nil
	}

	body := map[string]string{
		"external_id":    req.Reference,
		"amount":         req.Amount.StringFixed(2),
		"currency":       req.Currency,
		"account_number": req.Destination,
		"description":    req.Reason,
	}

	var d bankDisbursement
	if err := a.post(ctx, "/disbursements", body, &d); err != nil {
		return nil, err
	}
	if d.FailCode != "" {
		return nil, apperr.Rejection(a.Name(), d.FailCode, d.Message)
	}
	return &TransferResult{TransferID: d.ID}, nil
}

type bankCallback struct {
	Event      string `json:"event"`
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Amount     string `json:"amount"`
	FailCode   string `json:"failure_code"`
}

// ParseCallback authenticates the shared callback token and normalizes the
// event. Fails closed.
func (a *BankAdapter) ParseCallback(payload []byte, headers map[string]string) (*CallbackEvent, error) {
	token := headers["X-Callback-Token"]
	if token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(a.creds.CallbackToken)) != 1 {
		return &CallbackEvent{Valid: false}, nil
	}

	var cb bankCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return &CallbackEvent{Valid: false}, nil
	}

	amount, _ := decimal.NewFromString(cb.Amount)
	ev := &CallbackEvent{
		Valid:             true,
		ProviderReference: cb.ID,
		ClientReference:   cb.ExternalID,
		Amount:            amount,
		Receipt:           cb.ID,
		FailureReason:     cb.FailCode,
	}

	switch cb.Event {
	case "charge.settled":
		ev.Type = EventPaymentCompleted
	case "charge.failed", "charge.expired":
		ev.Type = EventPaymentFailed
	case "disbursement.completed":
		ev.Type = EventTransferCompleted
	case "disbursement.failed":
		ev.Type = EventTransferFailed
	default:
		return &CallbackEvent{Valid: false}, nil
	}
	return ev, nil
}

func (a *BankAdapter) post(ctx context.Context, path string, body, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.creds.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return apperr.Transport(a.Name(), path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.send(req, dest)
}

func (a *BankAdapter) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.creds.BaseURL+path, nil)
	if err != nil {
		return apperr.Transport(a.Name(), path, err)
	}
	return a.send(req, dest)
}

func (a *BankAdapter) send(req *http.Request, dest interface{}) error {
	req.SetBasicAuth(a.creds.APIKey, "")

	resp, err := a.client.Do(req)
	if err != nil {
		return apperr.Transport(a.Name(), req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperr.Transport(a.Name(), req.URL.Path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apperr.Rejection(a.Name(), fmt.Sprintf("http_%d", resp.StatusCode), string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
