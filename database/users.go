package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mayurvchitte/lms-ci-cd/models"
	"github.com/mayurvchitte/lms-ci-cd/otp"
)

// UserStore is the durable user record access the controllers depend
// on. Every mutation is a single-record atomic update.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, u *models.User) error
	RecordLogin(ctx context.Context, id bson.ObjectID, at time.Time) error
	SaveResetTicket(ctx context.Context, email string, t otp.Ticket) error
	UpdatePassword(ctx context.Context, email string, hash string) error
	SetActive(ctx context.Context, id bson.ObjectID, active bool) error
	Enroll(ctx context.Context, id bson.ObjectID, courseID string) error
	WishlistAdd(ctx context.Context, id bson.ObjectID, courseID string) error
	WishlistRemove(ctx context.Context, id bson.ObjectID, courseID string) error
	UpdateProfile(ctx context.Context, id bson.ObjectID, name, photoURL string) error
	List(ctx context.Context) ([]models.User, error)
}

type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(col *mongo.Collection) *MongoUsers {
	return &MongoUsers{col: col}
}

// EnsureIndexes creates the unique email index the duplicate-signup
// checks rely on.
func (s *MongoUsers) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoUsers) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoUsers) EmailTaken(ctx context.Context, email string) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoUsers) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, u)
	return err
}

// RecordLogin stamps lastLoginAt and initializes isActive to true only
// when the flag was never set. A manual deactivation stays false.
func (s *MongoUsers) RecordLogin(ctx context.Context, id bson.ObjectID, at time.Time) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"isActive": true}},
	)
	if err != nil {
		return err
	}
	_, err = s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastLoginAt": at, "updatedAt": at},
	})
	return err
}

func (s *MongoUsers) SaveResetTicket(ctx context.Context, email string, t otp.Ticket) error {
	update := bson.M{"$set": bson.M{
		"resetOtp":         t.Code,
		"resetOtpExpires":  t.ExpiresAt,
		"resetOtpVerified": t.Verified,
		"updatedAt":        time.Now().UTC(),
	}}
	res, err := s.col.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdatePassword stores the new hash and burns the reset ticket in the
// same single-record update.
func (s *MongoUsers) UpdatePassword(ctx context.Context, email string, hash string) error {
	update := bson.M{
		"$set":   bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetOtp": "", "resetOtpExpires": "", "resetOtpVerified": ""},
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *MongoUsers) SetActive(ctx context.Context, id bson.ObjectID, active bool) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"isActive": active, "updatedAt": time.Now().UTC()},
	})
	return err
}

// Enroll adds the course id with set semantics, so duplicate callback
// delivery from the gateway is harmless.
func (s *MongoUsers) Enroll(ctx context.Context, id bson.ObjectID, courseID string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"enrolledCourses": courseID},
	})
	return err
}

func (s *MongoUsers) WishlistAdd(ctx context.Context, id bson.ObjectID, courseID string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"wishlist": courseID},
	})
	return err
}

func (s *MongoUsers) WishlistRemove(ctx context.Context, id bson.ObjectID, courseID string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"wishlist": courseID},
	})
	return err
}

func (s *MongoUsers) UpdateProfile(ctx context.Context, id bson.ObjectID, name, photoURL string) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if name != "" {
		set["name"] = name
	}
	if photoURL != "" {
		set["photoUrl"] = photoURL
	}
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (s *MongoUsers) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
