// README: Table store backed by PostgreSQL.
package table

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var ErrNotFound = errors.New("table not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Table, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, tenant_id, table_number, status FROM tables WHERE id = $1`,
		string(id),
	)
	var t Table
	err := row.Scan(&t.ID, &t.TenantID, &t.Number, &t.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tables SET status = $1 WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
