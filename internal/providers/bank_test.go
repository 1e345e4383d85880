package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"giveflow/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func bankCreds(baseURL string) config.ProviderCredentials {
	return config.ProviderCredentials{
		BaseURL:       baseURL,
		APIKey:        "xnd_key",
		CallbackToken: "cb_token",
	}
}

func TestBankParseCallback_TokenAuth(t *testing.T) {
	adapter := NewBankAdapter(bankCreds("http://unused"))
	payload := []byte(`{"event":"charge.settled","id":"chg_1","external_id":"GF-abc","amount":"2000.00"}`)

	tests := []struct {
		name      string
		token     string
		wantValid bool
	}{
		{"correct token", "cb_token", true},
		{"wrong token", "cb_other", false},
		{"missing token", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.token != "" {
				headers["X-Callback-Token"] = tt.token
			}
			ev, err := adapter.ParseCallback(payload, headers)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantValid, ev.Valid)
			if tt.wantValid {
				assert.Equal(t, EventPaymentCompleted, ev.Type)
				assert.Equal(t, "GF-abc", ev.ClientReference)
				assert.Equal(t, "chg_1", ev.ProviderReference)
				assert.True(t, ev.Amount.Equal(decimal.NewFromInt(2000)))
			}
		})
	}
}

func TestBankParseCallback_DisbursementEvents(t *testing.T) {
	adapter := NewBankAdapter(bankCreds("http://unused"))

	tests := []struct {
		event    string
		wantType string
	}{
		{"disbursement.completed", EventTransferCompleted},
		{"disbursement.failed", EventTransferFailed},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			payload := []byte(`{"event":"` + tt.event + `","id":"dsb_provider_1","external_id":"DSB-GF-abc"}`)
			ev, err := adapter.ParseCallback(payload, map[string]string{"X-Callback-Token": "cb_token"})
			assert.NoError(t, err)
			assert.True(t, ev.Valid)
			assert.Equal(t, tt.wantType, ev.Type)
		})
	}
}

func TestBankTransfer_IdempotentOnExternalID(t *testing.T) {
	var creates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/disbursements":
			assert.Equal(t, "DSB-GF-abc", r.URL.Query().Get("external_id"))
			json.NewEncoder(w).Encode([]map[string]string{{"id": "dsb_existing", "status": "PENDING"}})
		case r.Method == http.MethodPost && r.URL.Path == "/disbursements":
			creates++
			json.NewEncoder(w).Encode(map[string]string{"id": "dsb_new"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	adapter := NewBankAdapter(bankCreds(srv.URL))
	result, err := adapter.Transfer(context.Background(), TransferRequest{
		Destination: "0011223344",
		Amount:      decimal.NewFromInt(1980),
		Currency:    "KES",
		Reference:   "DSB-GF-abc",
	})

	assert.NoError(t, err)
	assert.Equal(t, "dsb_existing", result.TransferID)
	assert.Zero(t, creates)
}
