package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/types"
	"github.com/gorilla/websocket"
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	user *types.User

	doneChan chan struct{}

	// WaitGroup which keeps track of running read/write loops and write
	// access to Send. When it is done, it is safe to close the channel.
	sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, user *types.User, doneChan chan struct{}) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		user:     user,
		doneChan: doneChan,
	}
}

func (c *Client) User() *types.User {
	return c.user
}

// deliver queues data for this client only. The hub lock plus the membership
// check make sure we never write to a channel the hub has already closed.
func (c *Client) deliver(data []byte) {
	c.hub.RLock()
	if _, ok := c.hub.clients[c]; ok {
		select {
		case c.Send <- data:
		default:
			globals.AppLogger.Warn("send buffer full, dropping frame", "room", c.hub.Room.Id)
		}
	}
	c.hub.RUnlock()
}

func (c *Client) deliverJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		globals.AppLogger.Error("could not marshal frame", "error", err)
		return
	}
	c.deliver(data)
}

// SendReplay brings a (re)connecting client up to date: chat history first
// (chronological), then the board snapshot, then the grid configuration, so
// the client can render a fully consistent picture before any live event
// arrives.
func (c *Client) SendReplay(wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	if c.hub.Persister != nil {
		history, err := c.hub.Persister.RecentChat(c.hub.Room.Id, c.hub.Cfg.HistoryConfig.Size())
		if err != nil {
			globals.AppLogger.Error("could not load chat history", "room", c.hub.Room.Id, "error", err)
		}
		for _, msg := range history {
			c.deliverJSON(types.ChatBroadcast{Type: types.MessageTypeChat, ChatMessage: msg})
		}
	}
	snap := c.hub.Board.Snapshot(c.hub.Room.Id)
	c.deliverJSON(types.SnapshotMessage{
		Type:     types.MessageTypeSnapshot,
		Elements: snap.ElementList(),
		Grid:     snap.Grid,
	})
	c.deliverJSON(types.GridMessage{
		Type:     types.MessageTypeGridState,
		GridSize: snap.Grid.Size,
		Kind:     snap.Grid.Kind,
	})
}

// ReadLoop pumps messages from the websocket connection to the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.conn.Close()
		close(c.doneChan)
		c.Done()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Debug("ws closed unexpected", "error", err)
			}
			return
		}

		fields := make(map[string]interface{})
		if err := json.Unmarshal(raw, &fields); err != nil {
			// malformed frames are dropped, the connection stays up
			globals.AppLogger.Debug("could not unmarshal ws message", "error", err)
			continue
		}
		msgType, _ := fields["type"].(string)
		if msgType == "" {
			continue
		}
		c.hub.Inbound <- inboundMessage{client: c, msgType: msgType, fields: fields, raw: raw}
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.Done()
	}()
	for {
		select {
		case <-c.doneChan:
			return
		default:
		}
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
