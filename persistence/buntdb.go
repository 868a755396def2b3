package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("chatts", "chat:*", buntdb.IndexJSON("timestamp"))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BuntDBPersist{db: db}, nil
}

func snapshotKey(roomId string) string { return "snapshot:" + roomId }
func chatKey(m types.ChatMessage) string {
	return fmt.Sprintf("chat:%s:%s", m.RoomId, m.Id)
}

func (p *BuntDBPersist) LoadSnapshot(roomId string) (*types.BoardState, error) {
	state := types.BoardState{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(snapshotKey(roomId))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &state)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if state.Elements == nil {
		state.Elements = make(map[string]types.Element)
	}
	state.RoomId = roomId
	return &state, nil
}

func (p *BuntDBPersist) SaveSnapshot(roomId string, state *types.BoardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(snapshotKey(roomId), string(data), nil)
		return err
	})
}

func (p *BuntDBPersist) AppendChat(msg types.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(chatKey(msg), string(data), nil)
		return err
	})
}

func (p *BuntDBPersist) RecentChat(roomId string, limit int) ([]types.ChatMessage, error) {
	messages := make([]types.ChatMessage, 0)
	prefix := "chat:" + roomId + ":"
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("chatts", func(key, val string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			msg := types.ChatMessage{}
			if err := json.Unmarshal([]byte(val), &msg); err == nil {
				messages = append(messages, msg)
			}
			return limit <= 0 || len(messages) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	// newest-first from the index, the replay wants chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("room:"+room.Id, string(data), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	err := p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get("room:" + room.Id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), room)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			room := types.Room{}
			if err := json.Unmarshal([]byte(val), &room); err == nil {
				rooms = append(rooms, &room)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntDBPersist) StoreUser(user types.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("user:"+user.Id, string(data), nil)
		return err
	})
}

func (p *BuntDBPersist) GetUser(user *types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	err := p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get("user:" + user.Id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), user)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
