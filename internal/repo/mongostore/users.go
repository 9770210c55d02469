package mongostore

import (
	"context"
	"errors"

	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UsersRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: db.Collection(usersCollection), prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	u.Email = user.NormalizeEmail(u.Email)
	if u.TrustedContacts == nil {
		u.TrustedContacts = []user.TrustedContact{}
	}

	err := r.observe("users.create", func() error {
		_, e := r.coll.InsertOne(ctx, u)
		return e
	})

	if mongo.IsDuplicateKeyError(err) {
		return user.ErrEmailTaken
	}
	return err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)})
}

// Mutate reads the document, applies fn and writes the mutable fields back.
// There is no lock: concurrent writers race and the last one wins.
func (r *UsersRepo) Mutate(ctx context.Context, id string, fn func(*user.User) error) (user.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if err := fn(&u); err != nil {
		return user.User{}, err
	}

	set := bson.M{
		"name":            u.Name,
		"phone":           u.Phone,
		"trustedContacts": u.TrustedContacts,
		"updatedAt":       u.UpdatedAt,
	}
	if u.CurrentLocation != nil {
		set["currentLocation"] = u.CurrentLocation
	}

	err = r.observe("users.mutate.update", func() error {
		res, e := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
		if e != nil {
			return e
		}
		if res.MatchedCount == 0 {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

// SetPushToken assigns token to the user, releasing it from any other holder first.
func (r *UsersRepo) SetPushToken(ctx context.Context, id, token string) error {
	err := r.observe("users.push_token.release", func() error {
		_, e := r.coll.UpdateMany(ctx,
			bson.M{"expoPushToken": token, "_id": bson.M{"$ne": id}},
			bson.M{"$unset": bson.M{"expoPushToken": ""}},
		)
		return e
	})
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{"expoPushToken": token}}
	if token == "" {
		update = bson.M{"$unset": bson.M{"expoPushToken": ""}}
	}

	return r.observe("users.push_token.set", func() error {
		res, e := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
		if e != nil {
			return e
		}
		if res.MatchedCount == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&u)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	if u.TrustedContacts == nil {
		u.TrustedContacts = []user.TrustedContact{}
	}
	return u, nil
}
