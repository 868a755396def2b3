package types

import (
	"strconv"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

const MaxChatMessageLength = 2000

// ChatMessage is one line of room chat. Messages are append-only: persisted on
// receipt and immutable afterwards. AuthorId is nil for guest/system messages.
type ChatMessage struct {
	Id         string    `json:"id" gorm:"primaryKey" hash:"ignore"`
	RoomId     string    `json:"room_id" gorm:"index"`
	AuthorId   *string   `json:"author_id"`
	AuthorNick string    `json:"author_nick"`
	AuthorRole string    `json:"author_role"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"timestamp"`
}

// CreateId derives the message id from the message contents.
func (m *ChatMessage) CreateId() error {
	h, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = strconv.FormatUint(h, 16)
	return nil
}
