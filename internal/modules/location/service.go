// README: Location service summarizes ping history for dispute resolution.
package location

import (
	"context"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type History interface {
	History(ctx context.Context, orderID types.ID) ([]Ping, error)
}

type Service struct {
	store History
}

func NewService(store History) *Service {
	return &Service{store: store}
}

// Summarize reduces an order's ping history to a count, the distance
// travelled along the recorded path, and the first/last timestamps.
func (s *Service) Summarize(ctx context.Context, orderID types.ID) (*RouteSummary, error) {
	pings, err := s.store.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return Summarize(orderID, pings), nil
}

// Summarize is the pure reduction over an already-loaded history.
func Summarize(orderID types.ID, pings []Ping) *RouteSummary {
	sum := &RouteSummary{OrderID: orderID, PingCount: len(pings)}
	if len(pings) == 0 {
		return sum
	}
	first := pings[0].RecordedAt
	last := pings[len(pings)-1].RecordedAt
	sum.FirstAt = &first
	sum.LastAt = &last
	for i := 1; i < len(pings); i++ {
		a, b := pings[i-1].Position, pings[i].Position
		sum.DistanceKm += haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return sum
}
