// README: Dine-in table entity.
package table

import "github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"

type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
)

type Table struct {
	ID       types.ID
	TenantID types.ID
	Number   int
	Status   Status
}
