package types

import "strconv"

// Element is one object on the shared board. The server treats the payload as
// opaque, only the "id" key is ever inspected.
type Element map[string]interface{}

// Id extracts the element id. Client-generated ids are usually strings, but a
// numeric id survives the JSON round trip as float64, so both are accepted.
func (e Element) Id() string {
	switch v := e["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

// Grid is the background grid configuration, stored and relayed verbatim.
type Grid struct {
	Size int    `json:"gridSize" mapstructure:"gridSize"`
	Kind string `json:"kind" mapstructure:"kind"`
}

func DefaultGrid() Grid {
	return Grid{Size: 0, Kind: "grid"}
}

// BoardState is the live collaborative surface of one room.
type BoardState struct {
	RoomId   string             `json:"room_id"`
	Elements map[string]Element `json:"elements"`
	Grid     Grid               `json:"grid"`
	Version  int64              `json:"version"`
}

func NewBoardState(roomId string) *BoardState {
	return &BoardState{
		RoomId:   roomId,
		Elements: make(map[string]Element),
		Grid:     DefaultGrid(),
	}
}

// Copy returns a snapshot safe to hand out. Element payloads are shared, they
// are never mutated once received.
func (s *BoardState) Copy() *BoardState {
	elements := make(map[string]Element, len(s.Elements))
	for id, el := range s.Elements {
		elements[id] = el
	}
	return &BoardState{
		RoomId:   s.RoomId,
		Elements: elements,
		Grid:     s.Grid,
		Version:  s.Version,
	}
}

// ElementList returns the elements as a slice for the snapshot wire format.
func (s *BoardState) ElementList() []Element {
	list := make([]Element, 0, len(s.Elements))
	for _, el := range s.Elements {
		list = append(list, el)
	}
	return list
}
