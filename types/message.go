package types

// Wire message vocabulary. Every frame, in both directions, is a flat JSON
// object carrying a "type" discriminator, so clients dispatch replies on the
// same switch they use to send.
const (
	MessageTypeElementAdd      = "element_add"
	MessageTypeElementUpdate   = "element_update"
	MessageTypeElementRemove   = "element_remove"
	MessageTypeGridState       = "grid_state"
	MessageTypeCursor          = "cursor"
	MessageTypeChat            = "chat_message"
	MessageTypeCallSignal      = "call_signal"
	MessageTypeWebRTCOffer     = "webrtc_offer"
	MessageTypeWebRTCAnswer    = "webrtc_answer"
	MessageTypeWebRTCCandidate = "webrtc_ice_candidate"
	MessageTypeSnapshotRequest = "snapshot_request"
	MessageTypeSnapshot        = "snapshot"

	// voice control frames are a namespace, not a single type
	VoiceMessagePrefix = "voice:"
)

const DefaultCallAction = "ring"

// Incoming payloads, decoded from the generic JSON map with mapstructure.

type ElementPayload struct {
	Element Element `mapstructure:"element"`
	Id      string  `mapstructure:"id"`
}

type GridPayload struct {
	GridSize int    `mapstructure:"gridSize"`
	Kind     string `mapstructure:"kind"`
}

type ChatPayload struct {
	Text string `mapstructure:"text"`
}

type CallSignalPayload struct {
	Action string `mapstructure:"action"`
	FromId string `mapstructure:"from_id"`
}

type SDPPayload struct {
	Sdp string `mapstructure:"sdp"`
}

type CandidatePayload struct {
	Candidate map[string]interface{} `mapstructure:"candidate"`
}

type VoicePayload struct {
	ToId string `mapstructure:"to_id"`
}

// Outgoing frames.

type ElementMessage struct {
	Type    string  `json:"type"`
	Element Element `json:"element"`
}

type ElementRemoveMessage struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

type GridMessage struct {
	Type     string `json:"type"`
	GridSize int    `json:"gridSize"`
	Kind     string `json:"kind"`
}

type CursorMessage struct {
	Type   string      `json:"type"`
	Cursor interface{} `json:"cursor"`
}

type ChatBroadcast struct {
	Type string `json:"type"`
	ChatMessage
}

type CallSignalMessage struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	FromId   string `json:"from_id"`
	FromRole string `json:"from_role"`
}

type SDPMessage struct {
	Type   string `json:"type"`
	Sdp    string `json:"sdp"`
	FromId string `json:"from_id"`
}

type CandidateMessage struct {
	Type      string      `json:"type"`
	Candidate interface{} `json:"candidate"`
	FromId    string      `json:"from_id"`
}

type SnapshotMessage struct {
	Type     string    `json:"type"`
	Elements []Element `json:"elements"`
	Grid     Grid      `json:"grid_state"`
}
