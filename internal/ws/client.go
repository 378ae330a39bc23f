package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be shorter than pongWait
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket connection subscribed to its user's groups. The
// stream is one-way: clients receive events and send only control frames.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan *GroupMessage
	userID   string
	groupIDs []string
}

// readPump discards inbound frames and keeps the connection's read deadline
// fresh off pongs; its exit unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pushes hub events to the connection and pings on a ticker.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			json.NewEncoder(w).Encode(msg)

			// drain whatever queued up behind this message
			n := len(c.send)
			for range n {
				json.NewEncoder(w).Encode(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and subscribes the authenticated user to the
// event streams of every group they belong to.
func ServeWs(hub *Hub, st store.Store, c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	uid := userID.(string)

	groupIDs, err := userGroupIDs(c.Request.Context(), st, uid)
	if err != nil {
		hub.log.Error("failed to load user groups", zap.String("user_id", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *GroupMessage, 256),
		userID:   uid,
		groupIDs: groupIDs,
	}
	hub.register <- client
	go client.writePump()
	go client.readPump()
}

func userGroupIDs(ctx context.Context, st store.Store, userID string) ([]string, error) {
	var memberships []models.GroupMember
	err := st.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("user_id", userID), store.Eq("active", true)},
		store.Options{}, &memberships)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupID)
	}
	return ids, nil
}
