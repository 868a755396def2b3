package ws

import (
	"strings"
	"time"

	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/types"
	"github.com/mitchellh/mapstructure"
)

// dispatch routes one inbound frame. Malformed frames (missing element id,
// empty chat text, missing sdp) are dropped without an error reply, and
// unknown types are ignored: this is a best-effort real-time channel, not a
// transactional API.
//
// Echo policy: structural events (elements, grid, cursor) are applied
// optimistically by the sending client, so the originator is excluded from
// their broadcast. Chat and call-control frames are not applied client-side
// until the server confirms them, so the originator gets its own broadcast
// back.
func (h *Hub) dispatch(c *Client, msgType string, fields map[string]interface{}, raw []byte) {
	switch msgType {
	case types.MessageTypeElementAdd, types.MessageTypeElementUpdate:
		payload := types.ElementPayload{}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil || payload.Element == nil {
			return
		}
		if !h.Board.ApplyElementUpsert(h.Room.Id, payload.Element) {
			return
		}
		h.broadcastJSON(types.ElementMessage{Type: msgType, Element: payload.Element}, c)

	case types.MessageTypeElementRemove:
		payload := types.ElementPayload{}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil {
			return
		}
		id := payload.Id
		if id == "" && payload.Element != nil {
			id = payload.Element.Id()
		}
		if !h.Board.ApplyElementRemove(h.Room.Id, id) {
			return
		}
		h.broadcastJSON(types.ElementRemoveMessage{Type: msgType, Id: id}, c)

	case types.MessageTypeGridState:
		payload := types.GridPayload{Kind: "grid"}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil {
			return
		}
		grid := types.Grid{Size: payload.GridSize, Kind: payload.Kind}
		h.Board.ApplyGrid(h.Room.Id, grid)
		h.broadcastJSON(types.GridMessage{Type: msgType, GridSize: grid.Size, Kind: grid.Kind}, c)

	case types.MessageTypeCursor:
		// ephemeral, never persisted
		cursor := fields["cursor"]
		if cursor == nil {
			cursor = map[string]interface{}{}
		}
		h.broadcastJSON(types.CursorMessage{Type: msgType, Cursor: cursor}, c)

	case types.MessageTypeSnapshotRequest:
		h.sendSnapshot(c)

	case types.MessageTypeChat:
		payload := types.ChatPayload{}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil {
			return
		}
		text := strings.TrimSpace(payload.Text)
		if text == "" {
			return
		}
		if runes := []rune(text); len(runes) > types.MaxChatMessageLength {
			text = string(runes[:types.MaxChatMessageLength])
		}
		msg := types.ChatMessage{
			RoomId:     h.Room.Id,
			AuthorNick: c.user.Nick,
			AuthorRole: c.user.Role,
			Text:       text,
			CreatedAt:  time.Now(),
		}
		if c.user.Role != types.RoleGuest {
			authorId := c.user.Id
			msg.AuthorId = &authorId
		}
		if err := msg.CreateId(); err != nil {
			globals.AppLogger.Error("could not hash chat message", "error", err)
			return
		}
		// the broadcast copy is the sender's write acknowledgment, so it
		// goes out to everyone including the originator
		h.broadcastJSON(types.ChatBroadcast{Type: msgType, ChatMessage: msg}, nil)
		if h.Persister != nil {
			go func() {
				if err := h.Persister.AppendChat(msg); err != nil {
					globals.AppLogger.Error("could not persist chat message", "room", h.Room.Id, "error", err)
				}
			}()
		}

	case types.MessageTypeCallSignal:
		payload := types.CallSignalPayload{Action: types.DefaultCallAction}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil {
			return
		}
		if payload.Action == "" {
			payload.Action = types.DefaultCallAction
		}
		h.broadcastJSON(types.CallSignalMessage{
			Type:     msgType,
			Action:   payload.Action,
			FromId:   payload.FromId,
			FromRole: c.user.Role,
		}, nil)

	case types.MessageTypeWebRTCOffer, types.MessageTypeWebRTCAnswer:
		payload := types.SDPPayload{}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil || payload.Sdp == "" {
			return
		}
		h.broadcastJSON(types.SDPMessage{Type: msgType, Sdp: payload.Sdp, FromId: c.user.Id}, nil)

	case types.MessageTypeWebRTCCandidate:
		payload := types.CandidatePayload{}
		if err := mapstructure.WeakDecode(fields, &payload); err != nil || payload.Candidate == nil {
			return
		}
		h.broadcastJSON(types.CandidateMessage{Type: msgType, Candidate: payload.Candidate, FromId: c.user.Id}, nil)

	default:
		if strings.HasPrefix(msgType, types.VoiceMessagePrefix) {
			payload := types.VoicePayload{}
			if err := mapstructure.WeakDecode(fields, &payload); err != nil {
				return
			}
			// low-latency control frame, relayed verbatim; addressed
			// delivery when the target has a connection, room fallback
			// otherwise
			if payload.ToId != "" && h.unicast(payload.ToId, raw) {
				return
			}
			h.broadcast(raw, c)
		}
		// unknown types are silently ignored, forward compatibility over
		// strictness
	}
}

func (h *Hub) sendSnapshot(c *Client) {
	snap := h.Board.Snapshot(h.Room.Id)
	c.deliverJSON(types.SnapshotMessage{
		Type:     types.MessageTypeSnapshot,
		Elements: snap.ElementList(),
		Grid:     snap.Grid,
	})
}
