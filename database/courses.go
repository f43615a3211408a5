package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mayurvchitte/lms-ci-cd/models"
)

// CourseStore is the read-only slice of the catalog the payment flow
// needs. The catalog itself is owned elsewhere.
type CourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type MongoCourses struct {
	col *mongo.Collection
}

func NewMongoCourses(col *mongo.Collection) *MongoCourses {
	return &MongoCourses{col: col}
}

func (s *MongoCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	objID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var course models.Course
	err = s.col.FindOne(ctx, bson.M{"_id": objID}).Decode(&course)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}
