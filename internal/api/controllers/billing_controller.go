package controllers

import (
	"github.com/gin-gonic/gin"
	"net/http"

	"mentis/internal/models/request_models"
	"mentis/internal/services"
	"mentis/pkg/utils"
)

type BillingController struct {
	billingService services.BillingServiceInterface
	ledgerService  services.LedgerServiceInterface
}

func NewBillingController(
	billingService services.BillingServiceInterface,
	ledgerService services.LedgerServiceInterface,
) *BillingController {
	return &BillingController{
		billingService: billingService,
		ledgerService:  ledgerService,
	}
}

// Purchase godoc
// @Summary Contract a plan for the authenticated customer
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.PurchaseRequest true "Purchase Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/purchase [post]
func (b *BillingController) Purchase(c *gin.Context) {

	var request request_models.PurchaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := b.billingService.Purchase(c.Request.Context(), userId, request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Plan contracted, awaiting payment confirmation")
}

// GetSubscription godoc
// @Summary Get the authenticated customer's current subscription
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/subscription [get]
func (b *BillingController) GetSubscription(c *gin.Context) {

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := b.billingService.GetSubscription(c.Request.Context(), userId)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "")
}

// Cancel godoc
// @Summary Cancel the authenticated customer's subscription
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.CancelRequest false "Cancel Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/cancel [post]
func (b *BillingController) Cancel(c *gin.Context) {

	var request request_models.CancelRequest
	_ = c.ShouldBindJSON(&request)

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := b.billingService.Cancel(c.Request.Context(), userId, request.Reason)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Subscription cancelled")
}

// Upgrade godoc
// @Summary Upgrade to a higher plan immediately, crediting unused days
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.ChangePlanRequest true "Change Plan Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/upgrade [post]
func (b *BillingController) Upgrade(c *gin.Context) {
	b.changePlan(c, true)
}

// Downgrade godoc
// @Summary Switch to a lower plan immediately
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.ChangePlanRequest true "Change Plan Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/downgrade [post]
func (b *BillingController) Downgrade(c *gin.Context) {
	b.changePlan(c, false)
}

func (b *BillingController) changePlan(c *gin.Context, upgrade bool) {

	var request request_models.ChangePlanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	var (
		resp interface{}
		err  error
	)
	if upgrade {
		resp, err = b.billingService.Upgrade(c.Request.Context(), userId, request.NewPlanID)
	} else {
		resp, err = b.billingService.Downgrade(c.Request.Context(), userId, request.NewPlanID)
	}
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Plan changed")
}

// Consume godoc
// @Summary Consume one consultation from the current cycle
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/consume [post]
func (b *BillingController) Consume(c *gin.Context) {

	var request request_models.ConsumeRequest
	_ = c.ShouldBindJSON(&request)

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := b.billingService.Consume(c.Request.Context(), userId)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Consultation consumed")
}

// Ledger godoc
// @Summary List the authenticated customer's financial movements
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/ledger [get]
func (b *BillingController) Ledger(c *gin.Context) {

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	entries, err := b.ledgerService.ListLedger(c.Request.Context(), userId)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, entries, "")
}
