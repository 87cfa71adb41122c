package store

import (
	"context"
	"time"

	"plantcareapi/pkg/schemas"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Photos struct {
	Coll *mongo.Collection
}

func NewPhotos(db *mongo.Database) *Photos {
	return &Photos{Coll: db.Collection(PHOTOS_COLLECTION)}
}

// ListPhotos returns the photos of the given plants, oldest first.
func (s *Photos) ListPhotos(ctx context.Context, uid bson.ObjectID, plantIds []bson.ObjectID) ([]schemas.PlantPhoto, error) {

	photos := []schemas.PlantPhoto{}
	if len(plantIds) == 0 {
		return photos, nil
	}

	cursor, err := s.Coll.Find(ctx,
		bson.M{"userId": uid, "plantId": bson.M{"$in": plantIds}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, err
	}

	return photos, nil

}

func (s *Photos) CountPhotos(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (int64, error) {
	return s.Coll.CountDocuments(ctx, bson.M{"userId": uid, "plantId": plantId})
}

func (s *Photos) CreatePhoto(ctx context.Context, photo *schemas.PlantPhoto) error {

	photo.CreatedAt = time.Now().UTC()
	res, err := s.Coll.InsertOne(ctx, photo)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		photo.Id = id
	}

	return nil

}

func (s *Photos) GetPhoto(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error) {
	var photo schemas.PlantPhoto
	if err := s.Coll.FindOne(ctx, bson.M{"_id": photoId, "plantId": plantId, "userId": uid}).Decode(&photo); err != nil {
		return nil, notFound(err)
	}
	return &photo, nil
}

func (s *Photos) DeletePhoto(ctx context.Context, uid bson.ObjectID, photoId bson.ObjectID) error {
	res, err := s.Coll.DeleteOne(ctx, bson.M{"_id": photoId, "userId": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Photos) DeletePhotosForPlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	_, err := s.Coll.DeleteMany(ctx, bson.M{"userId": uid, "plantId": plantId})
	return err
}

func (s *Photos) OldestPhoto(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.PlantPhoto, error) {
	var photo schemas.PlantPhoto
	err := s.Coll.FindOne(ctx,
		bson.M{"userId": uid, "plantId": plantId},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	).Decode(&photo)
	if err != nil {
		return nil, notFound(err)
	}
	return &photo, nil
}

func (s *Photos) ClearCover(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	_, err := s.Coll.UpdateMany(ctx,
		bson.M{"userId": uid, "plantId": plantId, "isCover": true},
		bson.M{"$set": bson.M{"isCover": false}},
	)
	return err
}

func (s *Photos) SetCover(ctx context.Context, uid bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error) {
	var photo schemas.PlantPhoto
	err := s.Coll.FindOneAndUpdate(ctx,
		bson.M{"_id": photoId, "userId": uid},
		bson.M{"$set": bson.M{"isCover": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&photo)
	if err != nil {
		return nil, notFound(err)
	}
	return &photo, nil
}
