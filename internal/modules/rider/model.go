// README: Rider aggregate with availability and presence.
package rider

import (
	"time"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceBusy    Presence = "busy"
)

type Rider struct {
	ID       types.ID
	TenantID types.ID
	Name     string
	// Active is set by the tenant admin. Until true the rider cannot be
	// assigned orders or connect to live channels.
	Active    bool
	Available bool
	Presence  Presence
	Position  types.Point
	UpdatedAt time.Time
}
