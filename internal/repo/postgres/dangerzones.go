package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/geocoder89/raksha/internal/domain/dangerzone"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DangerZonesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDangerZonesRepo(pool *pgxpool.Pool, prom *observability.Prom) *DangerZonesRepo {
	return &DangerZonesRepo{pool: pool, prom: prom}
}

func (r *DangerZonesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *DangerZonesRepo) Create(ctx context.Context, z dangerzone.Zone) error {
	coords, err := json.Marshal(z.Coordinates)
	if err != nil {
		return err
	}

	err = r.observe("danger_zones.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO danger_zones (id, name, coordinates, description, severity, is_active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, z.ID, z.Name, coords, z.Description, string(z.Severity), z.IsActive, z.CreatedAt)
		return e
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return dangerzone.ErrNameTaken
		}
		return err
	}
	return nil
}

// ListActive returns active zones in insertion order.
func (r *DangerZonesRepo) ListActive(ctx context.Context) ([]dangerzone.Zone, error) {
	out := make([]dangerzone.Zone, 0)

	err := r.observe("danger_zones.list_active", func() error {
		rows, e := r.pool.Query(ctx, `
			SELECT id, name, coordinates, description, severity, is_active, created_at
			FROM danger_zones
			WHERE is_active = TRUE
			ORDER BY seq ASC
		`)
		if e != nil {
			return e
		}
		defer rows.Close()

		for rows.Next() {
			var (
				z        dangerzone.Zone
				coords   []byte
				severity string
			)

			if e := rows.Scan(&z.ID, &z.Name, &coords, &z.Description, &severity, &z.IsActive, &z.CreatedAt); e != nil {
				return e
			}

			if e := json.Unmarshal(coords, &z.Coordinates); e != nil {
				return fmt.Errorf("decode coordinates of zone %s: %w", z.ID, e)
			}
			z.Severity = dangerzone.Severity(severity)

			out = append(out, z)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
