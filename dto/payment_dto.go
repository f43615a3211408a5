package dto

type CreateOrderDTO struct {
	CourseID string `json:"courseId" binding:"required"`
}

type VerifyPaymentDTO struct {
	GatewayOrderID   string `json:"gatewayOrderId" binding:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}
