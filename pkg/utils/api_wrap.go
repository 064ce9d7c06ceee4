package utils

import (
	"errors"
	"github.com/gin-gonic/gin"
	"log"
	"net/http"

	"mentis/internal/gateway"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	traceID := c.GetString("trace_id")
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceID,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	traceID := c.GetString("trace_id")
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID,
	})
}

func HandleServiceError(c *gin.Context, err error) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		log.Printf("Gateway error: %v", gwErr)
		RespondError(c, http.StatusBadGateway, gwErr.GatewayMessage)
		return
	}

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidDate):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidPage):
		RespondError(c, http.StatusBadRequest, "Page must be greater than 0")
	case errors.Is(err, ErrInvalidPageSize):
		RespondError(c, http.StatusBadRequest, "Page size must be between 1 and 100")
	case errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrCycleNotFound):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrActiveSubscriptionExists),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrSubscriptionNotActive),
		errors.Is(err, ErrSubscriptionExpired),
		errors.Is(err, ErrAwaitingPayment),
		errors.Is(err, ErrAllowanceExhausted):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrDatabaseError):
		log.Printf("Database error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.Printf("Unknown error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
