package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/table"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type testFixture struct {
	engine *Engine
	orders *memOrders
	riders *memRiders
	pings  *memPings
	tables *memTables
	access *stubAccess
	router *memRouter
}

func newFixture() *testFixture {
	f := &testFixture{
		orders: newMemOrders(),
		riders: newMemRiders(),
		pings:  &memPings{},
		tables: newMemTables(),
		access: &stubAccess{},
		router: newMemRouter(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = NewEngine(f.orders, f.riders, f.pings, f.tables, f.access, f.router, logger)
	return f
}

func customer(id, tenant string) *auth.Principal {
	return &auth.Principal{ID: types.ID(id), Role: auth.RoleCustomer, TenantID: types.ID(tenant)}
}

func staff(id, tenant string) *auth.Principal {
	return &auth.Principal{ID: types.ID(id), Role: auth.RoleStaff, TenantID: types.ID(tenant)}
}

func riderPrincipal(id, tenant string) *auth.Principal {
	return &auth.Principal{ID: types.ID(id), Role: auth.RoleRider, TenantID: types.ID(tenant)}
}

func usd(cents int64) types.Money { return types.Money{Amount: cents, Currency: "USD"} }

// seedOrder plants an order directly in the store, bypassing CreateOrder.
func (f *testFixture) seedOrder(o order.Order) *order.Order {
	if o.ID == "" {
		o.ID = "o1"
	}
	if o.Channel == "" {
		o.Channel = order.ChannelDelivery
	}
	cp := o
	f.orders.orders[o.ID] = &cp
	return f.orders.orders[o.ID]
}

func (f *testFixture) seedRider(id, tenant string, active bool) {
	f.riders.add(rider.Rider{
		ID: types.ID(id), TenantID: types.ID(tenant), Name: id,
		Active: active, Available: true, Presence: rider.PresenceOnline,
	})
}

func TestCreateOrderTotalsAndFanOut(t *testing.T) {
	f := newFixture()
	cust := customer("c1", "t1")

	o, err := f.engine.CreateOrder(context.Background(), cust, CreateCommand{
		Channel: order.ChannelDelivery,
		Items: []ItemSpec{
			{MenuItemID: "m1", Name: "burger", UnitPrice: usd(1000), Quantity: 1},
			{MenuItemID: "m2", Name: "fries", UnitPrice: usd(500), Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Total.Amount != 2000 {
		t.Fatalf("total = %d, want 2000", o.Total.Amount)
	}
	if o.Status != order.StatusPending {
		t.Fatalf("status = %s, want pending", o.Status)
	}
	if o.CustomerID == nil || *o.CustomerID != "c1" {
		t.Fatal("customer principal should own the order")
	}

	emits := f.router.emitsOf(stream.EventOrderCreated)
	if len(emits) != 1 {
		t.Fatalf("created events = %d, want 1", len(emits))
	}
	groups := emits[0].groups
	want := []string{stream.OrderGroup(o.ID), stream.TenantGroup("t1"), stream.PrincipalGroup("c1")}
	if len(groups) != len(want) {
		t.Fatalf("audiences = %v, want %v", groups, want)
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Fatalf("audiences = %v, want %v", groups, want)
		}
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.engine.CreateOrder(ctx, customer("c1", "t1"), CreateCommand{Channel: order.ChannelDelivery})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("empty order: %v, want ErrValidation", err)
	}

	_, err = f.engine.CreateOrder(ctx, customer("c1", "t1"), CreateCommand{
		Channel: order.ChannelDineIn,
		Items:   []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(100), Quantity: 1}},
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("customer dine-in: %v, want ErrAccessDenied", err)
	}

	_, err = f.engine.CreateOrder(ctx, staff("s1", "t1"), CreateCommand{
		Channel: order.ChannelDineIn,
		Items:   []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(100), Quantity: 1}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("dine-in without table: %v, want ErrValidation", err)
	}

	_, err = f.engine.CreateOrder(ctx, customer("c1", "t1"), CreateCommand{
		Channel: order.ChannelDelivery,
		Items:   []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(100), Quantity: 0}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("zero quantity: %v, want ErrValidation", err)
	}
}

func TestCreateDineInOccupiesTable(t *testing.T) {
	f := newFixture()
	f.tables.add(table.Table{ID: "tb1", TenantID: "t1", Status: table.StatusAvailable})
	tableID := types.ID("tb1")

	_, err := f.engine.CreateOrder(context.Background(), staff("s1", "t1"), CreateCommand{
		Channel: order.ChannelDineIn,
		TableID: &tableID,
		Items:   []ItemSpec{{MenuItemID: "m1", Name: "steak", UnitPrice: usd(3000), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tb, _ := f.tables.Get(context.Background(), "tb1")
	if tb.Status != table.StatusOccupied {
		t.Fatalf("table status = %s, want occupied", tb.Status)
	}
	if len(f.router.emitsOf(stream.EventTableStatusChanged)) != 1 {
		t.Fatal("expected table status event")
	}
}

func TestClaimRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedRider("rA", "t1", true)
	f.seedRider("rB", "t1", true)
	cid := types.ID("c1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusAccepted})

	if err := f.engine.ClaimOrder(ctx, riderPrincipal("rA", "t1"), "o1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	rA, _ := f.riders.Get(ctx, "rA")
	if rA.Available {
		t.Fatal("claiming rider should be unavailable")
	}
	if rA.Presence != rider.PresenceBusy {
		t.Fatalf("presence = %s, want busy", rA.Presence)
	}

	err := f.engine.ClaimOrder(ctx, riderPrincipal("rB", "t1"), "o1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second claim: %v, want ErrConflict", err)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.RiderID == nil || *o.RiderID != "rA" {
		t.Fatal("order should remain assigned to the first rider")
	}
	rB, _ := f.riders.Get(ctx, "rB")
	if !rB.Available {
		t.Fatal("losing rider's availability must not change")
	}
	if len(f.orders.events) != 1 {
		t.Fatalf("audit rows = %d, want 1 for the winning claim", len(f.orders.events))
	}
}

func TestClaimGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedRider("r1", "t1", true)
	f.seedRider("r2", "t2", true)
	f.seedRider("r3", "t1", false)
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})

	if err := f.engine.ClaimOrder(ctx, staff("s1", "t1"), "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("staff claim: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.ClaimOrder(ctx, riderPrincipal("r2", "t2"), "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("cross-tenant claim: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.ClaimOrder(ctx, riderPrincipal("r3", "t1"), "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("inactive rider claim: %v, want ErrAccessDenied", err)
	}
	// pending orders are not in the claimable window
	if err := f.engine.ClaimOrder(ctx, riderPrincipal("r1", "t1"), "o1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("pending claim: %v, want ErrConflict", err)
	}
	if err := f.engine.ClaimOrder(ctx, riderPrincipal("r1", "t1"), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order claim: %v, want ErrNotFound", err)
	}
}

func TestRejectReturnsOrderToPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedRider("r1", "t1", true)
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusAccepted})

	p := riderPrincipal("r1", "t1")
	if err := f.engine.ClaimOrder(ctx, p, "o1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.engine.RejectOrder(ctx, p, "o1"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	o, _ := f.orders.Get(ctx, "o1")
	if o.RiderID != nil {
		t.Fatal("reject should clear the assignment")
	}
	if o.Status != order.StatusAccepted {
		t.Fatalf("status = %s, reject must not change it", o.Status)
	}
	r, _ := f.riders.Get(ctx, "r1")
	if !r.Available || r.Presence != rider.PresenceOnline {
		t.Fatal("reject should restore availability")
	}
	if len(f.orders.events) != 2 {
		t.Fatalf("audit rows = %d, want claim + reject", len(f.orders.events))
	}

	// A second reject has no assignment to clear.
	if err := f.engine.RejectOrder(ctx, p, "o1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("double reject: %v, want ErrConflict", err)
	}
}

func TestRejectForeignAssignment(t *testing.T) {
	f := newFixture()
	f.seedRider("r1", "t1", true)
	f.seedRider("r2", "t1", true)
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusAccepted})

	ctx := context.Background()
	if err := f.engine.ClaimOrder(ctx, riderPrincipal("r1", "t1"), "o1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.engine.RejectOrder(ctx, riderPrincipal("r2", "t1"), "o1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("foreign reject: %v, want ErrConflict", err)
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusPending})
	s := staff("s1", "t1")

	for _, to := range []order.Status{order.StatusAccepted, order.StatusPreparing, order.StatusReady} {
		if err := f.engine.AdvanceStatus(ctx, s, "o1", to); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusReady {
		t.Fatalf("status = %s, want ready", o.Status)
	}
	if o.StatusVersion != 3 {
		t.Fatalf("status_version = %d, want 3", o.StatusVersion)
	}
	if n := len(f.router.emitsOf(stream.EventOrderStatusChanged)); n != 3 {
		t.Fatalf("status events = %d, want 3", n)
	}
	if len(f.orders.events) != 3 {
		t.Fatalf("audit rows = %d, want 3", len(f.orders.events))
	}
}

func TestAdvanceRejectsSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})

	err := f.engine.AdvanceStatus(ctx, staff("s1", "t1"), "o1", order.StatusDelivered)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("skip: %v, want ErrConflict", err)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusPending || o.StatusVersion != 0 {
		t.Fatal("failed advance must leave the order untouched")
	}
	if len(f.router.emits) != 0 {
		t.Fatal("failed advance must emit nothing")
	}
}

func TestAdvanceCancelledViaAdvanceRejected(t *testing.T) {
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})

	err := f.engine.AdvanceStatus(context.Background(), staff("s1", "t1"), "o1", order.StatusCancelled)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("advance to cancelled: %v, want ErrValidation", err)
	}
}

func TestAdvanceTenantIsolation(t *testing.T) {
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})

	err := f.engine.AdvanceStatus(context.Background(), staff("s2", "t2"), "o1", order.StatusAccepted)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("cross-tenant advance: %v, want ErrAccessDenied", err)
	}
}

func TestRiderAdvanceWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedRider("r1", "t1", true)
	rid := types.ID("r1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", RiderID: &rid, Status: order.StatusReady})

	p := riderPrincipal("r1", "t1")
	if err := f.engine.AdvanceStatus(ctx, p, "o1", order.StatusAccepted); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("rider advancing accepted: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.AdvanceStatus(ctx, p, "o1", order.StatusPickedUp); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if err := f.engine.AdvanceStatus(ctx, p, "o1", order.StatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	// Delivery is terminal; the rider goes back into rotation.
	r, _ := f.riders.Get(ctx, "r1")
	if !r.Available || r.Presence != rider.PresenceOnline {
		t.Fatal("delivery should restore rider availability")
	}
}

func TestRiderAdvanceUnassigned(t *testing.T) {
	f := newFixture()
	f.seedRider("r1", "t1", true)
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusReady})

	err := f.engine.AdvanceStatus(context.Background(), riderPrincipal("r1", "t1"), "o1", order.StatusPickedUp)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unassigned rider advance: %v, want ErrAccessDenied", err)
	}
}

func TestCancelDineInFreesTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.tables.add(table.Table{ID: "tb1", TenantID: "t1", Status: table.StatusOccupied})
	tid := types.ID("tb1")
	f.seedOrder(order.Order{
		ID: "o1", TenantID: "t1", Channel: order.ChannelDineIn,
		TableID: &tid, Status: order.StatusPreparing,
	})

	if err := f.engine.CancelOrder(ctx, staff("s1", "t1"), "o1", "guest left"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", o.Status)
	}
	if o.CancelReason == nil || *o.CancelReason != "guest left" {
		t.Fatal("cancel reason should be recorded")
	}
	tb, _ := f.tables.Get(ctx, "tb1")
	if tb.Status != table.StatusAvailable {
		t.Fatalf("table status = %s, want available", tb.Status)
	}
}

func TestCancelGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})
	f.seedOrder(order.Order{ID: "o2", TenantID: "t1", Status: order.StatusDelivered})

	if err := f.engine.CancelOrder(ctx, staff("s1", "t1"), "o1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing reason: %v, want ErrValidation", err)
	}
	if err := f.engine.CancelOrder(ctx, customer("c1", "t1"), "o1", "changed my mind"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("customer cancel: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.CancelOrder(ctx, staff("s1", "t1"), "o2", "too late"); !errors.Is(err, ErrConflict) {
		t.Fatalf("cancel delivered: %v, want ErrConflict", err)
	}
	if err := f.engine.CancelOrder(ctx, staff("s2", "t2"), "o1", "not mine"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("cross-tenant cancel: %v, want ErrAccessDenied", err)
	}
}

func TestFrozenTenantBlocksMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})
	f.access.err = auth.ErrFrozenTenant

	err := f.engine.AdvanceStatus(ctx, staff("s1", "t1"), "o1", order.StatusAccepted)
	if !errors.Is(err, auth.ErrFrozenTenant) {
		t.Fatalf("frozen advance: %v, want ErrFrozenTenant", err)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusPending {
		t.Fatal("frozen tenant mutation must not change state")
	}
}

func TestSupersededSessionBlocksMutations(t *testing.T) {
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusPending})
	f.access.err = auth.ErrSessionSuperseded

	err := f.engine.CancelOrder(context.Background(), staff("s1", "t1"), "o1", "stale session")
	if !errors.Is(err, auth.ErrSessionSuperseded) {
		t.Fatalf("superseded cancel: %v, want ErrSessionSuperseded", err)
	}
}

func TestAddItemsRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	f.seedOrder(order.Order{
		ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusPending,
		Items: []order.Item{{MenuItemID: "m1", UnitPrice: usd(1000), Quantity: 1}},
		Total: usd(1000),
	})

	o, err := f.engine.AddItems(ctx, customer("c1", "t1"), "o1", []ItemSpec{
		{MenuItemID: "m2", Name: "drink", UnitPrice: usd(300), Quantity: 2},
	})
	if err != nil {
		t.Fatalf("add items: %v", err)
	}
	if o.Total.Amount != 1600 {
		t.Fatalf("total = %d, want 1600", o.Total.Amount)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(o.Items))
	}
}

func TestAddItemsGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	rid := types.ID("r1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, RiderID: &rid, Status: order.StatusDelivered})
	f.seedOrder(order.Order{ID: "o2", TenantID: "t1", CustomerID: &cid, RiderID: &rid, Status: order.StatusPreparing})

	spec := []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(100), Quantity: 1}}
	if _, err := f.engine.AddItems(ctx, customer("c1", "t1"), "o1", spec); !errors.Is(err, ErrConflict) {
		t.Fatalf("terminal add: %v, want ErrConflict", err)
	}
	if _, err := f.engine.AddItems(ctx, riderPrincipal("r1", "t1"), "o2", spec); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("rider add: %v, want ErrAccessDenied", err)
	}
	if _, err := f.engine.AddItems(ctx, customer("c2", "t1"), "o2", spec); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("stranger add: %v, want ErrAccessDenied", err)
	}
}

func TestRecordLocationAppendsAndFansOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedRider("r1", "t1", true)
	cid := types.ID("c1")
	rid := types.ID("r1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, RiderID: &rid, Status: order.StatusPickedUp})

	p := riderPrincipal("r1", "t1")
	positions := []types.Point{{Lat: 25.03, Lng: 121.56}, {Lat: 25.04, Lng: 121.57}}
	for _, pos := range positions {
		if err := f.engine.RecordLocation(ctx, p, "o1", pos); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if len(f.pings.pings) != 2 {
		t.Fatalf("pings = %d, want 2 (history is append-only)", len(f.pings.pings))
	}
	for i, pos := range positions {
		if f.pings.pings[i].Position != pos {
			t.Fatalf("ping %d = %+v, want %+v", i, f.pings.pings[i].Position, pos)
		}
	}
	r, _ := f.riders.Get(ctx, "r1")
	if r.Position != positions[1] {
		t.Fatal("rider position should reflect the latest ping")
	}

	emits := f.router.emitsOf(stream.EventRiderLocation)
	if len(emits) != 2 {
		t.Fatalf("location events = %d, want 2", len(emits))
	}
	if len(emits[0].groups) != 3 {
		t.Fatalf("audiences = %v, want order + tenant + customer", emits[0].groups)
	}
}

func TestRecordLocationUnassignedRider(t *testing.T) {
	f := newFixture()
	f.seedRider("r1", "t1", true)
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Status: order.StatusReady})

	err := f.engine.RecordLocation(context.Background(), riderPrincipal("r1", "t1"), "o1", types.Point{})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unassigned record: %v, want ErrAccessDenied", err)
	}
	if len(f.pings.pings) != 0 {
		t.Fatal("denied record must persist nothing")
	}
}

func TestSendMessageParticipantsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	rid := types.ID("r1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, RiderID: &rid, Status: order.StatusPickedUp})

	if err := f.engine.SendMessage(ctx, customer("c1", "t1"), "o1", "where are you?"); err != nil {
		t.Fatalf("customer chat: %v", err)
	}
	if err := f.engine.SendMessage(ctx, riderPrincipal("r1", "t1"), "o1", "two minutes away"); err != nil {
		t.Fatalf("rider chat: %v", err)
	}
	if err := f.engine.SendMessage(ctx, customer("c2", "t1"), "o1", "hi"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("stranger chat: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.SendMessage(ctx, customer("c1", "t1"), "o1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty chat: %v, want ErrValidation", err)
	}
	if n := len(f.router.emitsOf(stream.EventChatMessage)); n != 2 {
		t.Fatalf("chat events = %d, want 2", n)
	}
}

func TestWatchOrderAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusPending})

	if err := f.engine.WatchOrder(ctx, customer("c1", "t1"), "conn-1", "o1"); err != nil {
		t.Fatalf("owner watch: %v", err)
	}
	joined := f.router.joins["conn-1"]
	if len(joined) != 1 || joined[0] != stream.OrderGroup("o1") {
		t.Fatalf("joins = %v, want [%s]", joined, stream.OrderGroup("o1"))
	}

	if err := f.engine.WatchOrder(ctx, customer("c2", "t1"), "conn-2", "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("stranger watch: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.WatchOrder(ctx, staff("s1", "t2"), "conn-3", "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("cross-tenant watch: %v, want ErrAccessDenied", err)
	}
	if err := f.engine.WatchOrder(ctx, staff("s1", "t1"), "conn-4", "o1"); err != nil {
		t.Fatalf("tenant staff watch: %v", err)
	}
}

func TestGetOrderScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusPending})

	if _, err := f.engine.GetOrder(ctx, customer("c1", "t1"), "o1"); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.engine.GetOrder(ctx, &auth.Principal{ID: "root", Role: auth.RoleSuperAdmin}, "o1"); err != nil {
		t.Fatalf("superadmin read: %v", err)
	}
	if _, err := f.engine.GetOrder(ctx, customer("c2", "t1"), "o1"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("stranger read: %v, want ErrAccessDenied", err)
	}
	if _, err := f.engine.GetOrder(ctx, customer("c1", "t1"), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing read: %v, want ErrNotFound", err)
	}
}

func TestCreateDineInForeignTableDenied(t *testing.T) {
	f := newFixture()
	f.tables.add(table.Table{ID: "tb-foreign", TenantID: "t2", Status: table.StatusAvailable})
	tableID := types.ID("tb-foreign")

	_, err := f.engine.CreateOrder(context.Background(), staff("s1", "t1"), CreateCommand{
		Channel: order.ChannelDineIn,
		TableID: &tableID,
		Items:   []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(1000), Quantity: 1}},
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("foreign table create: %v, want ErrAccessDenied", err)
	}
	tb, _ := f.tables.Get(context.Background(), "tb-foreign")
	if tb.Status != table.StatusAvailable {
		t.Fatalf("foreign table status = %s, must stay available", tb.Status)
	}
	if len(f.orders.orders) != 0 {
		t.Fatal("denied create must persist no order")
	}
	if len(f.router.emits) != 0 {
		t.Fatal("denied create must emit nothing")
	}
}

func TestCreateDineInMissingTable(t *testing.T) {
	f := newFixture()
	tableID := types.ID("no-such-table")

	_, err := f.engine.CreateOrder(context.Background(), staff("s1", "t1"), CreateCommand{
		Channel: order.ChannelDineIn,
		TableID: &tableID,
		Items:   []ItemSpec{{MenuItemID: "m1", UnitPrice: usd(1000), Quantity: 1}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing table create: %v, want ErrNotFound", err)
	}
}

func TestCancelSkipsForeignTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.tables.add(table.Table{ID: "tb-foreign", TenantID: "t2", Status: table.StatusOccupied})
	tid := types.ID("tb-foreign")
	f.seedOrder(order.Order{
		ID: "o1", TenantID: "t1", Channel: order.ChannelDineIn,
		TableID: &tid, Status: order.StatusPreparing,
	})

	if err := f.engine.CancelOrder(ctx, staff("s1", "t1"), "o1", "bad row"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	tb, _ := f.tables.Get(ctx, "tb-foreign")
	if tb.Status != table.StatusOccupied {
		t.Fatal("another tenant's table must not be touched on cancel")
	}
}

// cancelBeforeItems interleaves a cancellation between the engine's state
// read and the item write, so the version pin on AddItems must catch it.
type cancelBeforeItems struct {
	*memOrders
}

func (s *cancelBeforeItems) AddItems(ctx context.Context, id types.ID, items []order.Item, newTotal types.Money, version int) (bool, error) {
	reason := "customer walked out"
	_, _ = s.memOrders.UpdateStatus(ctx, id, order.StatusPending, order.StatusCancelled, version, &reason)
	return s.memOrders.AddItems(ctx, id, items, newTotal, version)
}

func TestAddItemsLosesToConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	cid := types.ID("c1")
	f.seedOrder(order.Order{
		ID: "o1", TenantID: "t1", CustomerID: &cid, Status: order.StatusPending,
		Items: []order.Item{{MenuItemID: "m1", UnitPrice: usd(1000), Quantity: 1}},
		Total: usd(1000),
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(&cancelBeforeItems{memOrders: f.orders},
		f.riders, f.pings, f.tables, f.access, f.router, logger)

	_, err := engine.AddItems(ctx, customer("c1", "t1"), "o1", []ItemSpec{
		{MenuItemID: "m2", Name: "drink", UnitPrice: usd(300), Quantity: 1},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("racing add: %v, want ErrConflict", err)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", o.Status)
	}
	if len(o.Items) != 1 {
		t.Fatalf("items = %d, nothing may land on a terminal order", len(o.Items))
	}
	if o.Total.Amount != 1000 {
		t.Fatalf("total = %d, must be unchanged", o.Total.Amount)
	}
}

func TestTerminalEdgeGatedByChannel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedOrder(order.Order{ID: "o1", TenantID: "t1", Channel: order.ChannelDelivery, Status: order.StatusReady})
	f.seedOrder(order.Order{ID: "o2", TenantID: "t1", Channel: order.ChannelDineIn, Status: order.StatusReady})
	f.seedOrder(order.Order{ID: "o3", TenantID: "t1", Channel: order.ChannelTakeaway, Status: order.StatusReady})
	s := staff("s1", "t1")

	if err := f.engine.AdvanceStatus(ctx, s, "o1", order.StatusCompleted); !errors.Is(err, ErrConflict) {
		t.Fatalf("completing a delivery order: %v, want ErrConflict", err)
	}
	if err := f.engine.AdvanceStatus(ctx, s, "o2", order.StatusPickedUp); !errors.Is(err, ErrConflict) {
		t.Fatalf("pickup on a dine-in order: %v, want ErrConflict", err)
	}
	if err := f.engine.AdvanceStatus(ctx, s, "o2", order.StatusCompleted); err != nil {
		t.Fatalf("completing a dine-in order: %v", err)
	}
	if err := f.engine.AdvanceStatus(ctx, s, "o3", order.StatusCompleted); err != nil {
		t.Fatalf("completing a takeaway order: %v", err)
	}
}
