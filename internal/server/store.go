package server

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Store keeps every live room in memory, keyed by code. All mutation runs
// as a closure under the store lock, so no command or timer callback ever
// observes a room mid-update. Reads hand out clones.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom registers a room under a fresh 4-character code and returns a
// copy. Codes are never reused while the room is alive.
func (s *Store) CreateRoom(room *Room) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := newRoomCode()
	for _, taken := s.rooms[code]; taken; _, taken = s.rooms[code] {
		code = newRoomCode()
	}
	room.Code = code
	room.CreatedAt = time.Now().UTC()
	s.rooms[code] = room
	return room.clone()
}

func (s *Store) GetRoom(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	return room.clone(), true
}

// UpdateRoom applies update to the live room under the store lock and
// returns a copy of the result. A nil room error means the code is unknown.
func (s *Store) UpdateRoom(code string, update func(room *Room) error) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, errNotFound("room %s not found", code)
	}
	if err := update(room); err != nil {
		return nil, err
	}
	return room.clone(), nil
}

func (s *Store) DeleteRoom(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return false
	}
	delete(s.rooms, code)
	return true
}

// ListRooms returns copies of every live room, oldest first, for the
// discovery lobby.
func (s *Store) ListRooms() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		list = append(list, room.clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

type removeResult struct {
	Deleted bool
	Room    *Room
}

// RemoveParticipant drops userID from the room. A departing host revokes
// the whole room; anyone else is filtered out of the participant list.
func (s *Store) RemoveParticipant(code, userID string) (removeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return removeResult{}, errNotFound("room %s not found", code)
	}
	if room.HostID == userID {
		delete(s.rooms, code)
		return removeResult{Deleted: true}, nil
	}
	room.Participants = lo.Filter(room.Participants, func(p Participant, _ int) bool {
		return p.UserID != userID
	})
	return removeResult{Room: room.clone()}, nil
}
