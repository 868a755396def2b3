package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aliboard/aliboard-server/board"
	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/types"
)

const (
	maxMessageSize     = 64 * 1024
	pongWait           = 2 * time.Minute
	pingPeriod         = time.Minute
	writeWait          = 10 * time.Second
	sendChannelSize    = 1000
	inboundChannelSize = 1000
)

type inboundMessage struct {
	client  *Client
	msgType string
	fields  map[string]interface{}
	raw     []byte
}

// Hub is the per-room fan-out group. One hub exists per live room; its run
// loop is the single writer that accepts inbound events, applies them to the
// board store and broadcasts the result, which is what guarantees that
// delivery order matches acceptance order within a room.
type Hub struct {
	Room *types.Room

	// Registered clients (the pub/sub group of the room).
	clients map[*Client]struct{}

	// registry maps an identified participant to their latest connection,
	// used for unicast delivery only. Guests are not registered here.
	registry map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inboundMessage

	Board     *board.Store
	Persister persistence.Persister
	Cfg       *config.Config

	// mutex for manipulating the clients
	sync.RWMutex
}

func NewHub(room *types.Room, cfg *config.Config, boardStore *board.Store, persister persistence.Persister) *Hub {
	return &Hub{
		Room:       room,
		clients:    make(map[*Client]struct{}),
		registry:   make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inboundMessage, inboundChannelSize),
		Board:      boardStore,
		Persister:  persister,
		Cfg:        cfg,
	}
}

// NoClients returns the number of clients registered
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// Run is the main hub event loop handling register, unregister and inbound
// events.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Lock()
			h.clients[client] = struct{}{}
			if client.user != nil && client.user.Id != "" && client.user.Role != types.RoleGuest {
				// last registration wins when a user opens a second tab
				h.registry[client.user.Id] = client
			}
			h.Unlock()
			client.Done()

		case client := <-h.Unregister:
			h.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.user != nil && h.registry[client.user.Id] == client {
					delete(h.registry, client.user.Id)
				}
				if client.conn != nil {
					client.conn.Close()
				}
				// wait for all loops and in-flight sends before closing
				// the channel, see the teacher discussion on channel
				// closing: the lock keeps new senders out
				client.Wait()
				close(client.Send)
			}
			h.Unlock()

		case msg := <-h.Inbound:
			h.dispatch(msg.client, msg.msgType, msg.fields, msg.raw)
		}
	}
}

// broadcast fans data out to every registered client except exclude. Sends
// never block the room loop: a client whose buffer is full has the frame
// dropped (best-effort real-time channel).
func (h *Hub) broadcast(data []byte, exclude *Client) {
	h.RLock()
	defer h.RUnlock()
	for client := range h.clients {
		if client == exclude {
			continue
		}
		select {
		case client.Send <- data:
		default:
			globals.AppLogger.Warn("send buffer full, dropping frame", "room", h.Room.Id)
		}
	}
}

func (h *Hub) broadcastJSON(v interface{}, exclude *Client) {
	data, err := json.Marshal(v)
	if err != nil {
		globals.AppLogger.Error("could not marshal broadcast frame", "error", err)
		return
	}
	h.broadcast(data, exclude)
}

// unicast delivers data to the registered connection of one participant.
// Returns false when the participant has no active connection in this room.
func (h *Hub) unicast(userId string, data []byte) bool {
	h.RLock()
	defer h.RUnlock()
	client, ok := h.registry[userId]
	if !ok {
		return false
	}
	select {
	case client.Send <- data:
	default:
		globals.AppLogger.Warn("send buffer full, dropping unicast frame", "room", h.Room.Id, "user", userId)
	}
	return true
}

// Lookup reports whether a participant currently has a registered connection.
func (h *Hub) Lookup(userId string) bool {
	h.RLock()
	defer h.RUnlock()
	_, ok := h.registry[userId]
	return ok
}
