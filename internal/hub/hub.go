package hub

import (
	"errors"
	"sync"

	"github.com/weiawesome/cycredit-chat/pkg/log"
)

type room struct {
	mu      sync.RWMutex
	members map[*Client]struct{}
	dead    bool // emptied and unlinked; joiners must fetch a fresh room
}

// Hub is the room registry: room key to the set of live clients. Each room
// has its own lock. The outer lock guards the room map and the client index
// and is always released before a room lock is taken.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	clients map[*Client]string // client -> room key
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]*room),
		clients: make(map[*Client]string),
	}
}

// Join registers client in roomKey. A client already in another room is
// moved, so it is never a member of two rooms. h.mu is never held while
// waiting on a room lock.
func (h *Hub) Join(client *Client, roomKey string) {
	h.mu.Lock()
	prev, had := h.clients[client]
	if had && prev == roomKey {
		h.mu.Unlock()
		return
	}
	h.clients[client] = roomKey
	h.mu.Unlock()

	if had {
		h.detach(client, prev)
	}
	h.attach(client, roomKey)
	client.setRoom(roomKey)

	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Str(log.FieldRoom, roomKey).Msg("client joined room")
}

// Leave removes client from its room. Removing an unknown client is a no-op.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	roomKey, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if !ok {
		return
	}

	client.setRoom("")
	h.detach(client, roomKey)

	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Str(log.FieldRoom, roomKey).Msg("client left room")
}

// attach adds client to the member set of roomKey, unless the client left or
// moved on since its index entry was written.
func (h *Hub) attach(client *Client, roomKey string) {
	for {
		r := h.roomFor(roomKey)
		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			h.dropRoom(roomKey, r)
			continue
		}

		if current, ok := h.roomOf(client); !ok || current != roomKey {
			empty := len(r.members) == 0
			if empty {
				r.dead = true
			}
			r.mu.Unlock()
			if empty {
				h.dropRoom(roomKey, r)
			}
			return
		}

		r.members[client] = struct{}{}
		r.mu.Unlock()
		return
	}
}

// detach removes client from roomKey and deletes the room once it is empty.
func (h *Hub) detach(client *Client, roomKey string) {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.members, client)
	empty := len(r.members) == 0 && !r.dead
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		h.dropRoom(roomKey, r)
	}
}

// roomFor returns the room for roomKey, creating it if needed.
func (h *Hub) roomFor(roomKey string) *room {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[roomKey]; !ok {
		r = &room{members: make(map[*Client]struct{})}
		h.rooms[roomKey] = r
	}
	return r
}

// dropRoom unlinks r if it is still the registered room for roomKey.
func (h *Hub) dropRoom(roomKey string, r *room) {
	h.mu.Lock()
	if h.rooms[roomKey] == r {
		delete(h.rooms, roomKey)
	}
	h.mu.Unlock()
}

func (h *Hub) roomOf(client *Client) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	key, ok := h.clients[client]
	return key, ok
}

// Members returns a snapshot of the clients in roomKey.
func (h *Hub) Members(roomKey string) []*Client {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}

// Broadcast queues data to every client in roomKey and returns how many
// accepted it. No lock is held while queueing. Closed clients are skipped;
// clients whose queue is full are closed and removed.
func (h *Hub) Broadcast(roomKey string, data []byte) int {
	members := h.Members(roomKey)

	delivered := 0
	var dead []*Client
	for _, c := range members {
		err := c.Enqueue(data)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSendBufferFull):
			l := log.L()
			l.Warn().Str(log.FieldConnID, c.ID).Str(log.FieldRoom, roomKey).Msg("send buffer full, dropping slow client")
			dead = append(dead, c)
		default:
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		c.Close()
		h.Leave(c)
	}
	return delivered
}

// RoomClientCount returns the number of clients in roomKey.
func (h *Hub) RoomClientCount(roomKey string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes and removes every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.rooms = make(map[string]*room)
	h.clients = make(map[*Client]string)
	h.mu.Unlock()

	for _, c := range clients {
		c.setRoom("")
		c.Close()
	}

	l := log.L()
	l.Info().Int("clients", len(clients)).Msg("hub shut down")
}
