package store

import (
	"context"
	"time"

	"plantcareapi/pkg/schemas"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Plants struct {
	Coll *mongo.Collection
}

func NewPlants(db *mongo.Database) *Plants {
	return &Plants{Coll: db.Collection(PLANTS_COLLECTION)}
}

func (s *Plants) ListPlants(ctx context.Context, uid bson.ObjectID, sort schemas.SortOption, limit int64) ([]schemas.Plant, error) {

	opts := options.Find().SetLimit(limit)
	if sort == schemas.SortAlphabetical {
		opts.SetSort(bson.D{{Key: "name", Value: 1}}).
			SetCollation(&options.Collation{Locale: "de", Strength: 2})
	} else {
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	}

	cursor, err := s.Coll.Find(ctx, bson.M{"userId": uid}, opts)
	if err != nil {
		return nil, err
	}

	plants := []schemas.Plant{}
	if err := cursor.All(ctx, &plants); err != nil {
		return nil, err
	}

	return plants, nil

}

func (s *Plants) CreatePlant(ctx context.Context, plant *schemas.Plant) error {

	now := time.Now().UTC()
	plant.CreatedAt = now
	plant.UpdatedAt = now

	res, err := s.Coll.InsertOne(ctx, plant)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		plant.Id = id
	}

	return nil

}

func (s *Plants) GetPlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.Plant, error) {
	var plant schemas.Plant
	if err := s.Coll.FindOne(ctx, bson.M{"_id": plantId, "userId": uid}).Decode(&plant); err != nil {
		return nil, notFound(err)
	}
	return &plant, nil
}

func (s *Plants) UpdatePlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID, fields bson.M) (*schemas.Plant, error) {

	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	var plant schemas.Plant
	err := s.Coll.FindOneAndUpdate(ctx,
		bson.M{"_id": plantId, "userId": uid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&plant)
	if err != nil {
		return nil, notFound(err)
	}

	return &plant, nil

}

func (s *Plants) DeletePlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	res, err := s.Coll.DeleteOne(ctx, bson.M{"_id": plantId, "userId": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
