package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/types"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BoardSnapshot is the durable form of a room's board state, the state itself
// is kept as an opaque JSON document.
type BoardSnapshot struct {
	RoomId    string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &GormPersist{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.User{}, &types.Room{}, &types.ChatMessage{}, &BoardSnapshot{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (p *GormPersist) LoadSnapshot(roomId string) (*types.BoardState, error) {
	snap := BoardSnapshot{RoomId: roomId}
	err := p.db.First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	state := types.BoardState{}
	if err := json.Unmarshal(snap.Data, &state); err != nil {
		return nil, err
	}
	if state.Elements == nil {
		state.Elements = make(map[string]types.Element)
	}
	state.RoomId = roomId
	return &state, nil
}

func (p *GormPersist) SaveSnapshot(roomId string, state *types.BoardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	snap := BoardSnapshot{RoomId: roomId, Data: data, UpdatedAt: time.Now()}
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&snap).Error
}

func (p *GormPersist) AppendChat(msg types.ChatMessage) error {
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&msg).Error
}

func (p *GormPersist) RecentChat(roomId string, limit int) ([]types.ChatMessage, error) {
	messages := make([]types.ChatMessage, 0)
	err := p.db.Where("room_id = ?", roomId).Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// newest-first from the query, the replay wants chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	err := p.db.First(room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) StoreUser(user types.User) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&user).Error
}

func (p *GormPersist) GetUser(user *types.User) error {
	err := p.db.First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) Close() error {
	return nil
}
