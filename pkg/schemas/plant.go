package schemas

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type SortOption string

const (
	SortNewest       SortOption = "newest"
	SortAlphabetical SortOption = "alphabetical"
)

// ParseSortOption maps the list query parameter, anything unknown means newest first.
func ParseSortOption(s string) SortOption {
	if s == string(SortAlphabetical) {
		return SortAlphabetical
	}
	return SortNewest
}

type Plant struct {
	Id        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserId    bson.ObjectID `bson:"userId" json:"user_id"`
	Name      string        `bson:"name" json:"name"`
	Species   *string       `bson:"species" json:"species"`
	Location  *string       `bson:"location" json:"location"`
	PlantedAt *string       `bson:"plantedAt" json:"planted_at"`
	Notes     *string       `bson:"notes" json:"notes"`
	CreatedAt time.Time     `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updated_at"`
	Photos    []PlantPhoto  `bson:"-" json:"plant_photos,omitempty"`
}

type PlantPhoto struct {
	Id          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	PlantId     bson.ObjectID `bson:"plantId" json:"plant_id"`
	UserId      bson.ObjectID `bson:"userId" json:"user_id"`
	StoragePath string        `bson:"storagePath" json:"storage_path"`
	IsCover     bool          `bson:"isCover" json:"is_cover"`
	CreatedAt   time.Time     `bson:"createdAt" json:"created_at"`
	Url         string        `bson:"-" json:"url"`
}

// Cover returns the plant's cover photo, if any.
func (p *Plant) Cover() *PlantPhoto {
	for i := range p.Photos {
		if p.Photos[i].IsCover {
			return &p.Photos[i]
		}
	}
	return nil
}

// NullableString tells apart an absent JSON field (Set false), an explicit
// null (Set true, Valid false) and a value.
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

func (ns *NullableString) UnmarshalJSON(data []byte) error {
	ns.Set = true
	if bytes.Equal(data, []byte("null")) {
		ns.Valid = false
		ns.Value = ""
		return nil
	}
	if err := json.Unmarshal(data, &ns.Value); err != nil {
		return err
	}
	ns.Valid = true
	return nil
}

func (ns NullableString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.Value)
}

// Ptr returns nil for null, the value otherwise.
func (ns NullableString) Ptr() *string {
	if !ns.Valid {
		return nil
	}
	v := ns.Value
	return &v
}

// PlantUpdate carries a partial update, unset fields are left unchanged.
type PlantUpdate struct {
	Name      NullableString `json:"name" validate:"omitempty,min=1,maxgraphemes=100"`
	Species   NullableString `json:"species" validate:"omitempty,maxgraphemes=100"`
	Location  NullableString `json:"location" validate:"omitempty,maxgraphemes=100"`
	PlantedAt NullableString `json:"planted_at" validate:"omitempty,datetime=2006-01-02"`
	Notes     NullableString `json:"notes" validate:"omitempty,maxgraphemes=1000"`
}

// Fields returns the bson $set document for the fields present in the update.
func (u *PlantUpdate) Fields() bson.M {
	set := bson.M{}
	if u.Name.Set && u.Name.Valid {
		set["name"] = u.Name.Value
	}
	if u.Species.Set {
		set["species"] = u.Species.Ptr()
	}
	if u.Location.Set {
		set["location"] = u.Location.Ptr()
	}
	if u.PlantedAt.Set {
		set["plantedAt"] = u.PlantedAt.Ptr()
	}
	if u.Notes.Set {
		set["notes"] = u.Notes.Ptr()
	}
	return set
}
