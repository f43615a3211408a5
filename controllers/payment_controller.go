package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/database"
	"github.com/mayurvchitte/lms-ci-cd/dto"
	"github.com/mayurvchitte/lms-ci-cd/gateway"
	"github.com/mayurvchitte/lms-ci-cd/models"
)

// POST /payment/order
func CreateOrder(payments database.PaymentStore, courses database.CourseStore, gw *gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")

		var body dto.CreateOrderDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		ctx := c.Request.Context()

		paid, err := payments.FindPaid(ctx, userID, body.CourseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if paid != nil {
			respondErr(c, apperr.New(apperr.Conflict, "already enrolled"))
			return
		}

		course, err := courses.FindByID(ctx, body.CourseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if course == nil {
			respondErr(c, apperr.New(apperr.NotFound, "course not found"))
			return
		}

		amount := course.Price * 100 // minor currency units
		order, err := gw.CreateOrder(ctx, amount, "INR", "course_"+body.CourseID)
		if err != nil {
			log.Println("gateway order:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment gateway unavailable"})
			return
		}

		payment := models.Payment{
			UserID:         userID,
			CourseID:       body.CourseID,
			GatewayOrderID: order.ID,
			Amount:         amount,
			Currency:       "INR",
			Status:         models.PaymentCreated,
			CreatedAt:      time.Now().UTC(),
		}
		if err := payments.Insert(ctx, &payment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record order"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"order": order, "key": gw.KeyID()})
	}
}

// POST /payment/verify
func VerifyPayment(payments database.PaymentStore, users database.UserStore, gw *gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.VerifyPaymentDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		// The signature is the sole fraud gate; nothing below runs
		// without it.
		if !gw.VerifySignature(body.GatewayOrderID, body.GatewayPaymentID, body.Signature) {
			serr := apperr.New(apperr.Signature, "invalid signature")
			c.JSON(serr.Status(), gin.H{"success": false, "error": serr.Message})
			return
		}

		ctx := c.Request.Context()

		payment, err := payments.FindByOrderID(ctx, body.GatewayOrderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if payment == nil {
			serr := apperr.New(apperr.NotFound, "payment record not found")
			c.JSON(serr.Status(), gin.H{"success": false, "error": serr.Message})
			return
		}

		if err := payments.MarkPaid(ctx, body.GatewayOrderID, body.GatewayPaymentID, body.Signature, time.Now().UTC()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update order"})
			return
		}

		userID, err := bson.ObjectIDFromHex(payment.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt payment record"})
			return
		}
		// Set semantics make a duplicate callback harmless.
		if err := users.Enroll(ctx, userID, payment.CourseID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enroll"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
