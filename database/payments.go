package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mayurvchitte/lms-ci-cd/models"
)

// PaymentStore tracks purchase attempts from order creation through
// gateway-confirmed payment. Status only ever moves created -> paid.
type PaymentStore interface {
	FindPaid(ctx context.Context, userID, courseID string) (*models.Payment, error)
	FindByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	Insert(ctx context.Context, p *models.Payment) error
	MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string, at time.Time) error
}

type MongoPayments struct {
	col *mongo.Collection
}

func NewMongoPayments(col *mongo.Collection) *MongoPayments {
	return &MongoPayments{col: col}
}

func (s *MongoPayments) FindPaid(ctx context.Context, userID, courseID string) (*models.Payment, error) {
	var p models.Payment
	err := s.col.FindOne(ctx, bson.M{
		"userId":   userID,
		"courseId": courseID,
		"status":   models.PaymentPaid,
	}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoPayments) FindByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.col.FindOne(ctx, bson.M{"gatewayOrderId": gatewayOrderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoPayments) Insert(ctx context.Context, p *models.Payment) error {
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, p)
	return err
}

// MarkPaid transitions the order to paid. The filter keeps the
// transition one-way: an order already paid is left as it is.
func (s *MongoPayments) MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string, at time.Time) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"gatewayOrderId": gatewayOrderID, "status": models.PaymentCreated},
		bson.M{"$set": bson.M{
			"status":           models.PaymentPaid,
			"gatewayPaymentId": gatewayPaymentID,
			"signature":        signature,
			"paidAt":           at,
		}},
	)
	return err
}
