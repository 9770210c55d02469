package mongostore

import (
	"context"

	"github.com/geocoder89/raksha/internal/domain/dangerzone"
	"github.com/geocoder89/raksha/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type DangerZonesRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewDangerZonesRepo(db *mongo.Database, prom *observability.Prom) *DangerZonesRepo {
	return &DangerZonesRepo{coll: db.Collection(dangerZonesCollection), prom: prom}
}

func (r *DangerZonesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *DangerZonesRepo) Create(ctx context.Context, z dangerzone.Zone) error {
	err := r.observe("danger_zones.create", func() error {
		_, e := r.coll.InsertOne(ctx, z)
		return e
	})

	if mongo.IsDuplicateKeyError(err) {
		return dangerzone.ErrNameTaken
	}
	return err
}

// ListActive returns active zones in natural (insertion) order.
func (r *DangerZonesRepo) ListActive(ctx context.Context) ([]dangerzone.Zone, error) {
	out := make([]dangerzone.Zone, 0)

	err := r.observe("danger_zones.list_active", func() error {
		cur, e := r.coll.Find(ctx, bson.M{"isActive": true})
		if e != nil {
			return e
		}
		return cur.All(ctx, &out)
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
