package controllers

import (
	"github.com/gin-gonic/gin"
	"net/http"

	"mentis/internal/models/request_models"
	"mentis/internal/services"
	"mentis/pkg/utils"
)

type CustomerController struct {
	customerService services.CustomerServiceInterface
}

func NewCustomerController(customerService services.CustomerServiceInterface) *CustomerController {
	return &CustomerController{
		customerService: customerService,
	}
}

// Register godoc
// @Summary Register a customer and issue an access token
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body request_models.RegisterCustomerRequest true "Register Request"
// @Success 200 {object} utils.APIResponse
// @Router /customers/register [post]
func (cc *CustomerController) Register(c *gin.Context) {

	var request request_models.RegisterCustomerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	customer, token, err := cc.customerService.Register(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{
		"customer_id": customer.ID,
		"token":       token,
	}, "Customer registered")
}

// Login godoc
// @Summary Authenticate a customer and issue an access token
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body request_models.LoginRequest true "Login Request"
// @Success 200 {object} utils.APIResponse
// @Router /customers/login [post]
func (cc *CustomerController) Login(c *gin.Context) {

	var request request_models.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	customer, token, err := cc.customerService.Login(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{
		"customer_id": customer.ID,
		"token":       token,
	}, "Authenticated")
}

// Me godoc
// @Summary Get the authenticated customer's profile
// @Tags Customers
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /customers/me [get]
func (cc *CustomerController) Me(c *gin.Context) {

	userId := c.GetString("user_id")
	if userId == "" {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	customer, err := cc.customerService.GetCustomer(c.Request.Context(), userId)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, customer, "")
}
