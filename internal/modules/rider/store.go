// README: Rider store backed by PostgreSQL rows and Redis GEO positions.
package rider

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var ErrNotFound = errors.New("rider not found")

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

func geoKey(tenantID types.ID) string {
	return fmt.Sprintf("rider:geo:%s", string(tenantID))
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Rider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, active, available, presence,
		       position_lat, position_lng, updated_at
		FROM riders
		WHERE id = $1`, string(id),
	)
	var r Rider
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.Active, &r.Available, &r.Presence,
		&r.Position.Lat, &r.Position.Lng, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetAvailability flips the availability flag, optionally together with
// presence (busy while on a delivery, online otherwise).
func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool, presence Presence) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders
		SET available = $1, presence = $2, updated_at = NOW()
		WHERE id = $3`,
		available, string(presence), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePosition overwrites the rider's last-known position in Postgres and
// mirrors it into the tenant's Redis GEO set for nearby lookups.
func (s *Store) UpdatePosition(ctx context.Context, id, tenantID types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders
		SET position_lat = $1, position_lng = $2, updated_at = NOW()
		WHERE id = $3`,
		p.Lat, p.Lng, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.redis.GeoAdd(ctx, geoKey(tenantID), &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// Nearby returns tenant riders within radiusKm of a point, closest first.
func (s *Store) Nearby(ctx context.Context, tenantID types.ID, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey(tenantID), &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// Remove drops the rider from the tenant GEO set, e.g. when going offline.
func (s *Store) Remove(ctx context.Context, id, tenantID types.ID) error {
	return s.redis.ZRem(ctx, geoKey(tenantID), string(id)).Err()
}
