package handlers

import (
	"giveflow/internal/models"
	"giveflow/internal/services/recurring"
	"giveflow/internal/utils/response"
	"giveflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type RecurringHandler struct {
	plans *recurring.Service
}

func NewRecurringHandler(plans *recurring.Service) *RecurringHandler {
	return &RecurringHandler{plans: plans}
}

// CreatePlan registers a recurring giving plan. The first charge runs one
// period from now via the plan scheduler.
func (h *RecurringHandler) CreatePlan(c *fiber.Ctx) error {
	var input validation.PlanInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	v := validation.New()
	v.Plan(&input)
	if !v.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": v.Errors})
	}

	plan := &models.RecurringPlan{
		PayerContact:   input.PayerContact,
		OrganizationID: input.OrganizationID,
		CategoryID:     input.CategoryID,
		Amount:         input.Amount,
		Currency:       input.Currency,
		Provider:       input.Provider,
		Frequency:      input.Frequency,
	}
	if err := h.plans.CreatePlan(c.Context(), plan); err != nil {
		return response.ServerError(c, "failed to create plan")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          plan.ID,
		"status":      plan.Status,
		"next_run_at": plan.NextRunAt,
	})
}
