package models

import "go.mongodb.org/mongo-driver/v2/bson"

// Course is the minimal slice of the catalog this core needs: the
// payment flow only looks up existence and price.
type Course struct {
	ID    bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Title string        `bson:"title" json:"title"`
	Price int64         `bson:"price" json:"price"` // major currency units
}
