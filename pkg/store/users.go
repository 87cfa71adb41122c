package store

import (
	"context"

	"plantcareapi/pkg/schemas"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type Users struct {
	Coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{Coll: db.Collection(USERS_COLLECTION)}
}

// CreateUser relies on the unique email index, a taken address yields ErrDuplicate.
func (s *Users) CreateUser(ctx context.Context, user *schemas.User) error {

	res, err := s.Coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		user.Id = id
	}

	return nil

}

func (s *Users) GetUserByEmail(ctx context.Context, email string) (*schemas.User, error) {
	var user schemas.User
	if err := s.Coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Users) GetUserById(ctx context.Context, uid bson.ObjectID) (*schemas.User, error) {
	var user schemas.User
	if err := s.Coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Users) SetEmailVerified(ctx context.Context, uid bson.ObjectID) error {
	return s.updateOne(ctx, uid, bson.M{"emailVerified": true})
}

func (s *Users) SetPassHash(ctx context.Context, uid bson.ObjectID, passHash string) error {
	return s.updateOne(ctx, uid, bson.M{"passHash": passHash})
}

func (s *Users) DeleteUser(ctx context.Context, uid bson.ObjectID) error {
	res, err := s.Coll.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Users) updateOne(ctx context.Context, uid bson.ObjectID, set bson.M) error {
	res, err := s.Coll.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
