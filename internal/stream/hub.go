package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

const writeWait = 5 * time.Second

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub pushes ledger events to the websocket connections of the account they
// belong to. Clients re-fetch GET /wallet when they receive one.
type Hub struct {
	mu       sync.RWMutex
	accounts map[string]map[*client]bool
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		accounts: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) register(accountID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.accounts[accountID]
	if !ok {
		set = make(map[*client]bool)
		h.accounts[accountID] = set
	}
	set[c] = true
}

func (h *Hub) unregister(accountID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.accounts[accountID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.accounts, accountID)
		}
	}
}

// Clients reports how many connections are open for the account.
func (h *Hub) Clients(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts[accountID])
}

func (h *Hub) broadcast(accountID string, evt wsEvent) {
	payload, _ := json.Marshal(evt)
	h.mu.RLock()
	targets := make([]*client, 0, len(h.accounts[accountID]))
	for c := range h.accounts[accountID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.unregister(accountID, c)
			_ = c.conn.Close()
		}
	}
}

// Observe implements ledger.Observer.
func (h *Hub) Observe(_ context.Context, evt ledger.Event) error {
	h.broadcast(evt.AccountID, wsEvent{Type: string(evt.Type), Data: evt})
	return nil
}

// Serve upgrades GET /wallet/stream for the authenticated account.
func (h *Hub) Serve(c echo.Context) error {
	accountID := appmw.UserID(c)
	if accountID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: ws}
	h.register(accountID, cl)

	// Read loop (discard client messages; protocol is server push)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(accountID, cl)
			_ = ws.Close()
			break
		}
	}
	return nil
}
