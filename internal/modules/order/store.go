// README: Order store backed by PostgreSQL with compare-and-set status updates.
package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var ErrNotFound = errors.New("order not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts the order and its items in one transaction.
func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, tenant_id, customer_id, rider_id,
			status, status_version, channel, table_id,
			total_amount, currency, dropoff_lat, dropoff_lng,
			cancellation_reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		string(o.ID), o.Number, string(o.TenantID),
		idPtr(o.CustomerID), idPtr(o.RiderID),
		string(o.Status), o.StatusVersion, string(o.Channel), idPtr(o.TableID),
		o.Total.Amount, o.Total.Currency,
		o.Dropoff.Lat, o.Dropoff.Lng,
		o.CancelReason, o.CreatedAt,
	)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_number, tenant_id, customer_id, rider_id,
		       status, status_version, channel, table_id,
		       total_amount, currency, dropoff_lat, dropoff_lng,
		       cancellation_reason, created_at,
		       accepted_at, ready_at, picked_up_at, delivered_at, cancelled_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var customerID, riderID, tableID, cancelReason sql.NullString
	var acceptedAt, readyAt, pickedUpAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.Number, &o.TenantID, &customerID, &riderID,
		&o.Status, &o.StatusVersion, &o.Channel, &tableID,
		&o.Total.Amount, &o.Total.Currency, &o.Dropoff.Lat, &o.Dropoff.Lng,
		&cancelReason, &o.CreatedAt,
		&acceptedAt, &readyAt, &pickedUpAt, &deliveredAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.CustomerID = toIDPtr(customerID)
	o.RiderID = toIDPtr(riderID)
	o.TableID = toIDPtr(tableID)
	if cancelReason.Valid {
		o.CancelReason = &cancelReason.String
	}
	o.AcceptedAt = toTimePtr(acceptedAt)
	o.ReadyAt = toTimePtr(readyAt)
	o.PickedUpAt = toTimePtr(pickedUpAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)

	items, err := s.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// GetByNumber resolves the human-facing order number printed on receipts.
func (s *Store) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT id FROM orders WHERE order_number = $1`, number)
	var id string
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, types.ID(id))
}

// UpdateStatus performs the compare-and-set transition. The WHERE clause pins
// both the previous status and the status version, so exactly one of any set
// of concurrent transition attempts wins.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    cancellation_reason = COALESCE($2, cancellation_reason),
		    accepted_at  = CASE WHEN $1 = 'accepted'  THEN NOW() ELSE accepted_at  END,
		    ready_at     = CASE WHEN $1 = 'ready'     THEN NOW() ELSE ready_at     END,
		    picked_up_at = CASE WHEN $1 = 'picked_up' THEN NOW() ELSE picked_up_at END,
		    delivered_at = CASE WHEN $1 IN ('delivered','completed') THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AssignRider claims an unassigned order for a rider. The rider_id IS NULL
// guard makes a second concurrent claim lose.
func (s *Store) AssignRider(ctx context.Context, id, riderID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET rider_id = $1, status_version = status_version + 1
		WHERE id = $2 AND rider_id IS NULL AND status_version = $3`,
		string(riderID), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClearRider releases an assignment back to the unassigned pool without
// changing the order status.
func (s *Store) ClearRider(ctx context.Context, id, riderID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET rider_id = NULL, status_version = status_version + 1
		WHERE id = $1 AND rider_id = $2 AND status_version = $3`,
		string(id), string(riderID), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddItems appends lines and re-derives the stored total in one transaction.
// The total update pins the status version and a non-terminal status, so a
// cancel or completion racing the append wins and the items never land.
func (s *Store) AddItems(ctx context.Context, id types.ID, items []Item, newTotal types.Money, version int) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET total_amount = $1, currency = $2, status_version = status_version + 1
		WHERE id = $3
		  AND status NOT IN ('delivered','completed','cancelled')
		  AND status_version = $4`,
		newTotal.Amount, newTotal.Currency, string(id), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertItems(ctx, tx, id, items); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorRole, idPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

// ListByCustomer returns a customer's orders, split into active and
// cancelled views by status.
func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID, cancelled bool) ([]Order, error) {
	cond := `status <> 'cancelled'`
	if cancelled {
		cond = `status = 'cancelled'`
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, order_number, tenant_id, status, status_version, channel,
		       total_amount, currency, created_at
		FROM orders
		WHERE customer_id = $1 AND `+cond+`
		ORDER BY created_at DESC`, string(customerID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.Number, &o.TenantID, &o.Status, &o.StatusVersion,
			&o.Channel, &o.Total.Amount, &o.Total.Currency, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		cid := customerID
		o.CustomerID = &cid
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) items(ctx context.Context, orderID types.ID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, unit_price, currency, quantity, add_ons
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var addOns []byte
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.MenuItemID, &it.Name,
			&it.UnitPrice.Amount, &it.UnitPrice.Currency, &it.Quantity, &addOns,
		); err != nil {
			return nil, err
		}
		if len(addOns) > 0 {
			if err := json.Unmarshal(addOns, &it.AddOns); err != nil {
				return nil, err
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID types.ID, items []Item) error {
	for _, it := range items {
		addOns, err := json.Marshal(it.AddOns)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (
				order_id, menu_item_id, name, unit_price, currency, quantity, add_ons
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			string(orderID), string(it.MenuItemID), it.Name,
			it.UnitPrice.Amount, it.UnitPrice.Currency, it.Quantity, addOns,
		); err != nil {
			return err
		}
	}
	return nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
