package handlers

import (
	"giveflow/internal/services/webhook"
	"giveflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	service *webhook.Service
}

func NewWebhookHandler(service *webhook.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// PaymentCallback ingests a provider payment notification. Always 200: a
// non-2xx would trigger aggressive provider-side retries, and internal
// failures are logged and alerted separately.
func (h *WebhookHandler) PaymentCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	body := append([]byte(nil), c.Body()...)
	headers := callbackHeaders(c)

	h.service.HandlePayment(c.Context(), provider, body, headers)
	return response.Ack(c)
}

// TransferCallback ingests a transfer-result notification for a
// disbursement. Same contract: always 200.
func (h *WebhookHandler) TransferCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	body := append([]byte(nil), c.Body()...)
	headers := callbackHeaders(c)

	h.service.HandleTransfer(c.Context(), provider, body, headers)
	return response.Ack(c)
}

// callbackHeaders copies the signature-bearing headers out of fiber's
// request-scoped storage before the handler returns.
func callbackHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for _, key := range []string{"X-Momo-Signature", "Stripe-Signature", "X-Callback-Token"} {
		if v := c.Get(key); v != "" {
			headers[key] = v
		}
	}
	return headers
}
