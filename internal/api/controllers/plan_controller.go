package controllers

import (
	"github.com/gin-gonic/gin"

	"mentis/internal/models/response_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

type PlanController struct {
	planRepo repositories.IPlanRepository
}

func NewPlanController(planRepo repositories.IPlanRepository) *PlanController {
	return &PlanController{
		planRepo: planRepo,
	}
}

// ListPlans godoc
// @Summary List the active plans, shortest recurrence first
// @Tags Plans
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /plans [get]
func (p *PlanController) ListPlans(c *gin.Context) {

	plans, err := p.planRepo.GetAllActivePlans(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, utils.ErrDatabaseError)
		return
	}

	result := make([]response_models.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		result = append(result, response_models.PlanResponse{
			ID:           plan.ID,
			Name:         plan.Name,
			Description:  plan.Description,
			Price:        plan.Price,
			Recurrence:   string(plan.Recurrence),
			DurationDays: plan.DurationDays,
			IsActive:     plan.IsActive,
		})
	}

	utils.RespondSuccess(c, result, "")
}
