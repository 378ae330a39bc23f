// Package ws streams group events (contributions recorded, cycles advanced,
// payout transitions) to connected clients. It is a UI optimization on top of
// the polling API; the engine never depends on it.
package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/pkg/logger"
)

// GroupMessage is one event pushed to the subscribers of a group.
type GroupMessage struct {
	GroupID string `json:"group_id"`
	Event   any    `json:"event"`
}

// Hub tracks connected clients and fans events out to each group's room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool // group ID -> subscribers

	register   chan *Client
	unregister chan *Client
	broadcast  chan *GroupMessage

	log *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *GroupMessage, 64),
		log:        log,
	}
}

// Run owns the client and room maps. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, groupID := range client.groupIDs {
				if _, ok := h.rooms[groupID]; !ok {
					h.rooms[groupID] = make(map[*Client]bool)
				}
				h.rooms[groupID][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			// collect slow clients outside the read lock, then drop them
			var stalled []*Client
			h.mu.RLock()
			for client := range h.rooms[msg.GroupID] {
				select {
				case client.send <- msg:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			if len(stalled) > 0 {
				h.mu.Lock()
				for _, client := range stalled {
					h.dropLocked(client)
				}
				h.mu.Unlock()
			}
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for _, groupID := range client.groupIDs {
		if room, ok := h.rooms[groupID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}
	}
}

// BroadcastToGroup pushes an event to every subscriber of the group.
func (h *Hub) BroadcastToGroup(groupID string, event any) {
	select {
	case h.broadcast <- &GroupMessage{GroupID: groupID, Event: event}:
	default:
		h.log.Warn("event dropped, broadcast queue full", zap.String("group_id", groupID))
	}
}
