package schemas

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type User struct {
	Id            bson.ObjectID `bson:"_id,omitempty"`
	Ctime         time.Time     `bson:"ctime"`
	Email         string        `bson:"email"`
	EmailVerified bool          `bson:"emailVerified"`
	PassHash      string        `bson:"passHash"`
}

// PublicUser is the user shape returned by the auth endpoints.
type PublicUser struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{Id: u.Id.Hex(), Email: u.Email}
}
