package request_models

type PurchaseRequest struct {
	PlanID string `json:"plan_id" binding:"required,uuid"`
	// One-shot card token issued by the gateway's client-side SDK.
	PaymentToken string `json:"payment_token" binding:"required"`
	// RFC3339; when set the subscription starts (and first charges) then.
	StartAt string `json:"start_at,omitempty"`
}

type ChangePlanRequest struct {
	NewPlanID string `json:"new_plan_id" binding:"required,uuid"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type ConsumeRequest struct {
	// Free-form reference to the consultation being booked.
	Reference string `json:"reference,omitempty"`
}
