package persistence

import (
	"errors"
	"fmt"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/types"
)

// ErrNotFound is returned when a requested record does not exist. Backends map
// their own sentinel errors onto it.
var ErrNotFound = errors.New("record not found")

// Persister is the durable-storage collaborator of the live session layer.
// Implementations must be safe for concurrent use; callers treat failures as
// non-fatal (log and carry on), the real-time path never blocks on storage.
type Persister interface {
	LoadSnapshot(roomId string) (*types.BoardState, error)
	SaveSnapshot(roomId string, state *types.BoardState) error
	AppendChat(msg types.ChatMessage) error
	// RecentChat returns at most limit newest messages of a room in
	// chronological order.
	RecentChat(roomId string, limit int) ([]types.ChatMessage, error)
	StoreRoom(room types.Room) error
	GetRoom(room *types.Room) error
	GetRooms() ([]*types.Room, error)
	StoreUser(user types.User) error
	GetUser(user *types.User) error
	Close() error
}

// NewPersister builds the configured backend. Returns nil (and no error) when
// persistence is not configured.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "":
		return nil, nil
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	case "buntdb":
		return NewBuntPersister(cfg)
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
