package handlers

import (
	"errors"

	"giveflow/internal/apperr"
	"giveflow/internal/models"
	"giveflow/internal/services/disbursement"
	"giveflow/internal/services/ledger"
	"giveflow/internal/services/payment"
	"giveflow/internal/utils/response"
	"giveflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments      *payment.Service
	ledger        ledger.Service
	disbursements disbursement.Service
}

func NewPaymentHandler(payments *payment.Service, ledgerSvc ledger.Service, disb disbursement.Service) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		ledger:        ledgerSvc,
		disbursements: disb,
	}
}

// InitiatePayment opens a payment session and returns as soon as the
// provider acknowledges acceptance, not completion.
func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	var input validation.InitiationInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	v := validation.New()
	v.Initiation(&input)
	if !v.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": v.Errors})
	}

	result, err := h.payments.Initiate(c.Context(), ledger.CreateRequest{
		Reference:      input.ClientReference,
		Amount:         input.Amount,
		Currency:       input.Currency,
		Provider:       input.Provider,
		PayerContact:   input.PayerContact,
		Anonymous:      input.Anonymous,
		OrganizationID: input.OrganizationID,
		CategoryID:     input.CategoryID,
		Notes:          input.Notes,
	})
	if err != nil {
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			return response.BadRequest(c, verr.Error())
		}
		var terr *apperr.ProviderTransportError
		if errors.As(err, &terr) {
			return response.Error(c, fiber.StatusServiceUnavailable,
				"provider temporarily unavailable, please retry")
		}
		return response.BadRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reference":           result.Transaction.Reference,
		"provider_session_id": result.ProviderSessionID,
		"redirect_url":        result.RedirectURL,
		"status":              result.Transaction.Status,
	})
}

// GetPaymentStatus returns the transaction status and, when present, the
// disbursement status and net amount.
func (h *PaymentHandler) GetPaymentStatus(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if reference == "" {
		return response.BadRequest(c, "reference is required")
	}

	tx, err := h.ledger.Get(c.Context(), reference)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return response.NotFound(c, "transaction not found")
		}
		return response.ServerError(c, "failed to load transaction")
	}

	body := fiber.Map{
		"reference": tx.Reference,
		"status":    tx.Status,
		"amount":    tx.Amount,
		"currency":  tx.Currency,
		"provider":  tx.Provider,
	}

	if d, err := h.disbursements.GetForTransaction(c.Context(), tx.ID); err == nil {
		body["disbursement"] = fiber.Map{
			"status":      d.Status,
			"net_amount":  d.NetAmount,
			"retry_count": d.RetryCount,
		}
	}

	return response.Success(c, "Transaction status", body)
}

// CancelPayment cancels a pending transaction locally. Once the provider has
// acknowledged the request there is nothing to cancel.
func (h *PaymentHandler) CancelPayment(c *fiber.Ctx) error {
	reference := c.Params("reference")

	if err := h.ledger.MarkCancelled(c.Context(), reference, "cancelled by caller"); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return response.NotFound(c, "transaction not found")
		}
		var invalid *apperr.InvalidStateTransition
		if errors.As(err, &invalid) {
			return response.Error(c, fiber.StatusConflict, "transaction can no longer be cancelled")
		}
		return response.ServerError(c, "failed to cancel transaction")
	}
	return response.Success(c, "Transaction cancelled", fiber.Map{
		"reference": reference,
		"status":    models.TransactionStatusCancelled,
	})
}
