package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
)

type Payment struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string        `bson:"userId" json:"userId"`
	CourseID         string        `bson:"courseId" json:"courseId"`
	GatewayOrderID   string        `bson:"gatewayOrderId" json:"gatewayOrderId"`
	GatewayPaymentID string        `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"`
	Signature        string        `bson:"signature,omitempty" json:"-"`
	Amount           int64         `bson:"amount" json:"amount"` // minor currency units
	Currency         string        `bson:"currency" json:"currency"`
	Status           PaymentStatus `bson:"status" json:"status"`
	PaidAt           *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
}
