package board

import (
	"sync"

	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/types"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
)

// Store is the keyed in-memory table of live board states. Rooms are loaded
// lazily (from a persisted snapshot when one exists), mutated under a per-room
// lock and written back asynchronously. The table itself is an LRU so that a
// long-running process does not accumulate every room id it has ever seen;
// evicted rooms are persisted one final time and reloaded on next access.
type Store struct {
	mu        sync.Mutex
	rooms     *lru.Cache
	persister persistence.Persister
	logger    hclog.Logger
}

type roomEntry struct {
	mu    sync.Mutex
	state *types.BoardState

	// persistence bookkeeping, guarded by persistMu
	persistMu        sync.Mutex
	persistedVersion int64
}

func NewStore(maxRooms int, persister persistence.Persister, logger hclog.Logger) (*Store, error) {
	s := &Store{persister: persister, logger: logger}
	cache, err := lru.NewWithEvict(maxRooms, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.rooms = cache
	return s, nil
}

func (s *Store) onEvict(key interface{}, value interface{}) {
	entry := value.(*roomEntry)
	entry.mu.Lock()
	state := entry.state.Copy()
	entry.mu.Unlock()
	s.persist(entry, state)
}

// getOrCreate returns the live entry for a room, loading a snapshot outside
// of the table lock so a slow storage read does not stall unrelated rooms.
func (s *Store) getOrCreate(roomId string) *roomEntry {
	s.mu.Lock()
	if v, ok := s.rooms.Get(roomId); ok {
		s.mu.Unlock()
		return v.(*roomEntry)
	}
	s.mu.Unlock()

	state := types.NewBoardState(roomId)
	if s.persister != nil {
		loaded, err := s.persister.LoadSnapshot(roomId)
		if err == nil {
			state = loaded
		} else if err != persistence.ErrNotFound {
			s.logger.Error("could not load board snapshot", "room", roomId, "error", err)
		}
	}
	entry := &roomEntry{state: state, persistedVersion: state.Version}

	s.mu.Lock()
	defer s.mu.Unlock()
	// somebody else may have loaded the room in the meantime
	if v, ok := s.rooms.Get(roomId); ok {
		return v.(*roomEntry)
	}
	s.rooms.Add(roomId, entry)
	return entry
}

// ApplyElementUpsert adds or replaces an element keyed by its id. Add and
// update are deliberately the same operation: last write wins, there is no
// merge of concurrent edits to the same element. Returns false if the element
// carries no id.
func (s *Store) ApplyElementUpsert(roomId string, el types.Element) bool {
	id := el.Id()
	if id == "" {
		return false
	}
	entry := s.getOrCreate(roomId)
	entry.mu.Lock()
	entry.state.Elements[id] = el
	entry.state.Version++
	state := entry.state.Copy()
	entry.mu.Unlock()
	go s.persist(entry, state)
	return true
}

func (s *Store) ApplyElementRemove(roomId, elementId string) bool {
	if elementId == "" {
		return false
	}
	entry := s.getOrCreate(roomId)
	entry.mu.Lock()
	delete(entry.state.Elements, elementId)
	entry.state.Version++
	state := entry.state.Copy()
	entry.mu.Unlock()
	go s.persist(entry, state)
	return true
}

func (s *Store) ApplyGrid(roomId string, grid types.Grid) {
	entry := s.getOrCreate(roomId)
	entry.mu.Lock()
	entry.state.Grid = grid
	entry.state.Version++
	state := entry.state.Copy()
	entry.mu.Unlock()
	go s.persist(entry, state)
}

// Snapshot returns a read-only copy of the room state for replay.
func (s *Store) Snapshot(roomId string) *types.BoardState {
	entry := s.getOrCreate(roomId)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.Copy()
}

// persist writes a state copy through the persister. Writes are serialized per
// room and stale copies are skipped, so an older version can never overwrite a
// newer one when goroutines race. Failures are logged, never propagated: the
// live session stays responsive while storage is unavailable.
func (s *Store) persist(entry *roomEntry, state *types.BoardState) {
	if s.persister == nil {
		return
	}
	entry.persistMu.Lock()
	defer entry.persistMu.Unlock()
	if state.Version <= entry.persistedVersion {
		return
	}
	if err := s.persister.SaveSnapshot(state.RoomId, state); err != nil {
		s.logger.Error("could not persist board snapshot", "room", state.RoomId, "error", err)
		return
	}
	entry.persistedVersion = state.Version
}

// Flush synchronously persists every resident room, used on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	keys := s.rooms.Keys()
	entries := make([]*roomEntry, 0, len(keys))
	for _, k := range keys {
		if v, ok := s.rooms.Peek(k); ok {
			entries = append(entries, v.(*roomEntry))
		}
	}
	s.mu.Unlock()
	for _, entry := range entries {
		entry.mu.Lock()
		state := entry.state.Copy()
		entry.mu.Unlock()
		s.persist(entry, state)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Len()
}
