// README: Order handlers for create, read, item append, advance, and cancel.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http/middleware"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type OrderHandler struct {
	engine *dispatch.Engine
	orders *order.Store
}

func NewOrderHandler(engine *dispatch.Engine, orders *order.Store) *OrderHandler {
	return &OrderHandler{engine: engine, orders: orders}
}

type itemReq struct {
	MenuItemID string        `json:"menu_item_id" binding:"required"`
	Name       string        `json:"name" binding:"required"`
	UnitPrice  int64         `json:"unit_price" binding:"required"`
	Currency   string        `json:"currency"`
	Quantity   int           `json:"quantity" binding:"required"`
	AddOns     []order.AddOn `json:"add_ons"`
}

type createOrderReq struct {
	Channel    string    `json:"channel" binding:"required"`
	CustomerID string    `json:"customer_id"`
	TableID    string    `json:"table_id"`
	DropoffLat float64   `json:"dropoff_lat"`
	DropoffLng float64   `json:"dropoff_lng"`
	Items      []itemReq `json:"items" binding:"required"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "invalid json")
		return
	}
	cmd := dispatch.CreateCommand{
		Channel: order.Channel(req.Channel),
		Dropoff: types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Items:   toSpecs(req.Items),
	}
	if req.CustomerID != "" {
		id := types.ID(req.CustomerID)
		cmd.CustomerID = &id
	}
	if req.TableID != "" {
		id := types.ID(req.TableID)
		cmd.TableID = &id
	}
	o, err := h.engine.CreateOrder(c.Request.Context(), middleware.Principal(c), cmd)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id":     o.ID,
		"order_number": o.Number,
		"status":       o.Status,
		"total":        o.Total,
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.engine.GetOrder(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type addItemsReq struct {
	Items []itemReq `json:"items" binding:"required"`
}

func (h *OrderHandler) AddItems(c *gin.Context) {
	var req addItemsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "invalid json")
		return
	}
	o, err := h.engine.AddItems(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")), toSpecs(req.Items))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": o.ID, "total": o.Total, "items": o.Items})
}

type advanceReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "invalid json")
		return
	}
	err := h.engine.AdvanceStatus(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")), order.Status(req.Status))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "status": req.Status})
}

type cancelReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "cancellation needs a reason")
		return
	}
	err := h.engine.CancelOrder(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")), req.Reason)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "status": order.StatusCancelled})
}

// GetByNumber resolves the human-facing order number printed on receipts,
// then runs the same view authorization as a lookup by id.
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	o, err := h.orders.GetByNumber(c.Request.Context(), c.Param("number"))
	if errors.Is(err, order.ErrNotFound) {
		writeError(c, http.StatusNotFound, "not_found", "unknown order number")
		return
	}
	if err != nil {
		writeEngineError(c, err)
		return
	}
	o, err = h.engine.GetOrder(c.Request.Context(), middleware.Principal(c), o.ID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ListMine returns the calling customer's orders. The cancelled view is the
// customer's "cancelled collection"; everything else is the active view.
func (h *OrderHandler) ListMine(c *gin.Context) {
	p := middleware.Principal(c)
	cancelled := c.Query("view") == "cancelled"
	orders, err := h.orders.ListByCustomer(c.Request.Context(), p.ID, cancelled)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func toSpecs(items []itemReq) []dispatch.ItemSpec {
	specs := make([]dispatch.ItemSpec, len(items))
	for i, it := range items {
		cur := it.Currency
		if cur == "" {
			cur = "USD"
		}
		specs[i] = dispatch.ItemSpec{
			MenuItemID: types.ID(it.MenuItemID),
			Name:       it.Name,
			UnitPrice:  types.Money{Amount: it.UnitPrice, Currency: cur},
			Quantity:   it.Quantity,
			AddOns:     it.AddOns,
		}
	}
	return specs
}
