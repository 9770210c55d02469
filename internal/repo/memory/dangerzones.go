package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/raksha/internal/domain/dangerzone"
)

type DangerZonesRepo struct {
	mu    sync.RWMutex
	items []dangerzone.Zone
}

func NewDangerZonesRepo() *DangerZonesRepo {
	return &DangerZonesRepo{}
}

func (r *DangerZonesRepo) Create(ctx context.Context, z dangerzone.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Name == z.Name {
			return dangerzone.ErrNameTaken
		}
	}

	z.Coordinates = append([]dangerzone.Point(nil), z.Coordinates...)
	r.items = append(r.items, z)
	return nil
}

func (r *DangerZonesRepo) ListActive(ctx context.Context) ([]dangerzone.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return dangerzone.ActiveOnly(r.items), nil
}
