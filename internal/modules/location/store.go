// README: Append-only ping store backed by PostgreSQL.
package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Append records one ping. There is no update or delete path.
func (s *Store) Append(ctx context.Context, p *Ping) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rider_location_pings (
			order_id, rider_id, lat, lng, recorded_at
		) VALUES ($1,$2,$3,$4,$5)`,
		string(p.OrderID), string(p.RiderID),
		p.Position.Lat, p.Position.Lng, p.RecordedAt,
	)
	return err
}

// History returns an order's pings in recorded order.
func (s *Store) History(ctx context.Context, orderID types.ID) ([]Ping, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, rider_id, lat, lng, recorded_at
		FROM rider_location_pings
		WHERE order_id = $1
		ORDER BY recorded_at, id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pings []Ping
	for rows.Next() {
		var p Ping
		if err := rows.Scan(&p.ID, &p.OrderID, &p.RiderID, &p.Position.Lat, &p.Position.Lng, &p.RecordedAt); err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, rows.Err()
}
