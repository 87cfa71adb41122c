// Package store keeps users, plants and plant photos in MongoDB. Every plant
// and photo query is scoped to the owning user id.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

const (
	USERS_COLLECTION  = "users"
	PLANTS_COLLECTION = "plants"
	PHOTOS_COLLECTION = "plant_photos"
)

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// EnsureIndexes creates the indexes the queries below rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {

	if _, err := db.Collection(USERS_COLLECTION).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	if _, err := db.Collection(PLANTS_COLLECTION).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "name", Value: 1}}},
	}); err != nil {
		return err
	}

	if _, err := db.Collection(PHOTOS_COLLECTION).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "plantId", Value: 1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		return err
	}

	return nil

}
