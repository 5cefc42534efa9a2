// README: Tenant store exposing the frozen flag checked on every mutating path.
package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var ErrTenantNotFound = errors.New("tenant not found")

// TenantStore reads tenant suspension state from Postgres.
type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) Frozen(ctx context.Context, id types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `SELECT frozen FROM tenants WHERE id = $1`, string(id))
	var frozen bool
	err := row.Scan(&frozen)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrTenantNotFound
	}
	if err != nil {
		return false, err
	}
	return frozen, nil
}
