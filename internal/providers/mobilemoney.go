package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

// The aggregator rejects references longer than this; the canonical reference
// stays on the transaction regardless.
const momoReferenceLimit = 32

// MobileMoneyAdapter integrates a mobile-money aggregator: synchronous push
// accept, asynchronous result callback signed with HMAC-SHA256.
type MobileMoneyAdapter struct {
	creds  config.ProviderCredentials
	client *http.Client
}

func NewMobileMoneyAdapter(creds config.ProviderCredentials) *MobileMoneyAdapter {
	return &MobileMoneyAdapter{
		creds:  creds,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *MobileMoneyAdapter) Name() string { return models.ProviderMobileMoney }

type momoPushRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	ShortCode   string `json:"short_code"`
}

type momoPushResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Initiate asks the aggregator to push a payment prompt to the payer's phone.
// The aggregator accepts synchronously; the result arrives on the callback.
func (a *MobileMoneyAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body := momoPushRequest{
		PhoneNumber: req.PayerContact,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Reference:   truncateReference(req.Reference, momoReferenceLimit),
		ShortCode:   a.creds.ShortCode,
	}

	var resp momoPushResponse
	if err := a.post(ctx, "/v1/push", body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != "" {
		return nil, apperr.Rejection(a.Name(), resp.ErrorCode, resp.Message)
	}
	return &InitiateResult{ProviderSessionID: resp.SessionID}, nil
}

type momoStatusResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Receipt   string `json:"receipt"`
}

// Verify fetches the push session status. Used for reconciliation when no
// callback has arrived within the expected window.
func (a *MobileMoneyAdapter) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	var resp momoStatusResponse
	if err := a.get(ctx, "/v1/push/"+url.PathEscape(sessionID), &resp); err != nil {
		return nil, err
	}

	amount, _ := decimal.NewFromString(resp.Amount)
	result := &VerifyResult{SettledAmount: amount, ProviderReceipt: resp.Receipt}
	switch resp.Status {
	case "SUCCESS":
		result.Status = VerifyStatusSettled
	case "FAILED", "CANCELLED", "EXPIRED":
		result.Status = VerifyStatusFailed
	default:
		result.Status = VerifyStatusPending
	}
	return result, nil
}

type momoTransferRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Reason      string `json:"reason"`
}

type momoTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

type momoTransferList struct {
	Transfers []momoTransferResponse `json:"transfers"`
}

// Transfer pays out to a mobile-money number. Idempotent on reference: an
// existing transfer with the same reference is returned instead of creating
// a second one.
func (a *MobileMoneyAdapter) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	ref := truncateReference(req.Reference, momoReferenceLimit)

	var existing momoTransferList
	if err := a.get(ctx, "/v1/transfers?reference="+url.QueryEscape(ref), &existing); err == nil &&
		len(existing.Transfers) > 0 {
		return &TransferResult{TransferID: existing.Transfers[0].TransferID}, nil
	}

	body := momoTransferRequest{
		PhoneNumber: req.Destination,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Reference:   ref,
		Reason:      req.Reason,
	}

	var resp momoTransferResponse
	if err := a.post(ctx, "/v1/transfers", body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != "" {
		return nil, apperr.Rejection(a.Name(), resp.ErrorCode, resp.Message)
	}
	return &TransferResult{TransferID: resp.TransferID}, nil
}

type momoCallback struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Receipt   string `json:"receipt"`
	Reason    string `json:"reason"`
}

// ParseCallback verifies the HMAC-SHA256 signature over the raw body and
// normalizes the event. Fails closed on any mismatch or malformed payload.
func (a *MobileMoneyAdapter) ParseCallback(payload []byte, headers map[string]string) (*CallbackEvent, error) {
	sig := headers["X-Momo-Signature"]
	if sig == "" || !a.validSignature(payload, sig) {
		return &CallbackEvent{Valid: false}, nil
	}

	var cb momoCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return &CallbackEvent{Valid: false}, nil
	}

	amount, _ := decimal.NewFromString(cb.Amount)
	ev := &CallbackEvent{
		Valid:             true,
		ProviderReference: cb.SessionID,
		ClientReference:   cb.Reference,
		Amount:            amount,
		Receipt:           cb.Receipt,
		FailureReason:     cb.Reason,
	}

	switch cb.Event {
	case "payment.success":
		ev.Type = EventPaymentCompleted
	case "payment.failed":
		ev.Type = EventPaymentFailed
	case "transfer.success":
		ev.Type = EventTransferCompleted
		ev.ProviderReference = cb.Reference
	case "transfer.failed":
		ev.Type = EventTransferFailed
		ev.ProviderReference = cb.Reference
	default:
		return &CallbackEvent{Valid: false}, nil
	}
	return ev, nil
}

func (a *MobileMoneyAdapter) validSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(a.creds.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (a *MobileMoneyAdapter) post(ctx context.Context, path string, body, dest interface{}) error {
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

func (a *MobileMoneyAdapter) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.creds.BaseURL+path, nil)
	if err != nil {
		return apperr.Transport(a.Name(), path, err)
	}
	return a.send(req, dest)
}

func (a *MobileMoneyAdapter) send(req *http.Request, dest interface{}) error {
	req.SetBasicAuth(a.creds.APIKey, a.creds.APISecret)

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

func truncateReference(ref string, limit int) string {
	if len(ref) <= limit {
		return ref
	}
	return ref[:limit]
}
