package handlers

import (
	"errors"
	"strconv"

	"giveflow/internal/apperr"
	"giveflow/internal/models"
	"giveflow/internal/services/disbursement"
	"giveflow/internal/services/ledger"
	"giveflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	disbursements disbursement.Service
	ledger        ledger.Service
}

func NewAdminHandler(disb disbursement.Service, ledgerSvc ledger.Service) *AdminHandler {
	return &AdminHandler{disbursements: disb, ledger: ledgerSvc}
}

// RequeueDisbursement resets a permanently failed disbursement. Operators
// only; this is the single escape hatch from an exhausted retry budget.
func (h *AdminHandler) RequeueDisbursement(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid disbursement id")
	}

	claims := c.Locals("claims").(*models.UserClaims)
	err = h.disbursements.Requeue(c.Context(), uint(id), claims.Email)
	if err != nil {
		if errors.Is(err, disbursement.ErrNotFound) {
			return response.NotFound(c, "disbursement not found")
		}
		if errors.Is(err, disbursement.ErrNotRequeueable) {
			return response.Error(c, fiber.StatusConflict, "disbursement is not permanently failed")
		}
		return response.ServerError(c, "failed to requeue disbursement")
	}
	return response.Success(c, "Disbursement requeued", fiber.Map{"id": id})
}

type refundInput struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// RefundTransaction moves a completed transaction to refunded. Operators
// only; the actual money movement happens at the provider and is recorded
// here after the fact.
func (h *AdminHandler) RefundTransaction(c *fiber.Ctx) error {
	reference := c.Params("reference")

	var input refundInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	err := h.ledger.MarkRefunded(c.Context(), reference, input.Amount, input.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return response.NotFound(c, "transaction not found")
		}
		if errors.Is(err, ledger.ErrRefundExceedsAmount) {
			return response.BadRequest(c, "refund amount is out of bounds")
		}
		var invalid *apperr.InvalidStateTransition
		if errors.As(err, &invalid) {
			return response.Error(c, fiber.StatusConflict, "only completed transactions can be refunded")
		}
		return response.ServerError(c, "failed to refund transaction")
	}
	return response.Success(c, "Transaction refunded", fiber.Map{
		"reference": reference,
		"status":    models.TransactionStatusRefunded,
	})
}
