// README: Live-connection gateway; authenticates the handshake and bridges frames to the engine.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// Frame is the envelope clients send on the live channel.
type Frame struct {
	Type    string   `json:"type"`
	OrderID types.ID `json:"order_id,omitempty"`
	Lat     float64  `json:"lat,omitempty"`
	Lng     float64  `json:"lng,omitempty"`
	Text    string   `json:"text,omitempty"`
}

const (
	FrameWatchOrder = "watch_order"
	FrameLocation   = "location"
	FrameChat       = "chat"
)

type errorPayload struct {
	Message string `json:"message"`
}

type Handler struct {
	gate         *auth.Gate
	engine       *dispatch.Engine
	router       *stream.Router
	logger       *slog.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewHandler(gate *auth.Gate, engine *dispatch.Engine, router *stream.Router, logger *slog.Logger, writeTimeout time.Duration) *Handler {
	return &Handler{
		gate:         gate,
		engine:       engine,
		router:       router,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve authenticates and upgrades a connection. Frozen tenants and
// superseded sessions are refused before any group membership exists, so
// live channels cannot bypass a freeze.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearer(c.GetHeader("Authorization"))
	}
	p, err := h.gate.Resolve(c.Request.Context(), token)
	if err != nil {
		status := http.StatusUnauthorized
		switch err {
		case auth.ErrFrozenTenant, auth.ErrSessionSuperseded:
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	groups := []string{stream.PrincipalGroup(p.ID)}
	if p.Role == auth.RoleStaff || p.Role == auth.RoleAdmin {
		groups = append(groups, stream.TenantGroup(p.TenantID))
	}
	sub := h.router.Register(connID, groups...)

	h.logger.Info("ws: connected",
		"conn_id", connID, "principal", string(p.ID), "role", string(p.Role))

	go h.writePump(conn, sub)
	h.readLoop(c.Request.Context(), conn, connID, p)

	h.router.Remove(connID)
	_ = conn.Close()
	h.logger.Info("ws: disconnected", "conn_id", connID)
}

// readLoop dispatches inbound frames into the engine. Engine failures come
// back as error events on the same connection rather than being dropped.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connID string, p *auth.Principal) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			h.emitError(connID, "malformed frame")
			continue
		}
		if err := h.handleFrame(ctx, connID, p, f); err != nil {
			h.emitError(connID, err.Error())
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, connID string, p *auth.Principal, f Frame) error {
	switch f.Type {
	case FrameWatchOrder:
		return h.engine.WatchOrder(ctx, p, connID, f.OrderID)
	case FrameLocation:
		return h.engine.RecordLocation(ctx, p, f.OrderID, types.Point{Lat: f.Lat, Lng: f.Lng})
	case FrameChat:
		return h.engine.SendMessage(ctx, p, f.OrderID, f.Text)
	default:
		return dispatch.ErrValidation
	}
}

// writePump drains the subscriber channel onto the socket. Within one
// connection events keep the order the engine generated them in.
func (h *Handler) writePump(conn *websocket.Conn, sub *stream.Subscriber) {
	for evt := range sub.C() {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
	// Subscriber closed: tell the client and let the read loop observe EOF.
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
}

func (h *Handler) emitError(connID, msg string) {
	h.router.EmitTo(connID, stream.NewEvent(stream.EventError, errorPayload{Message: msg}))
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
