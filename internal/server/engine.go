package server

import (
	"encoding/json"
	"errors"
	"sync"
)

// Commands and timer callbacks for one room must land as discrete,
// non-overlapping steps. Each room gets its own mutex, taken at the
// dispatch boundary (websocket loop, timer expiry, scheduled actions);
// handlers and helpers below that boundary assume it is held. Different
// rooms proceed concurrently.
func (s *Server) withRoom(code string, fn func()) {
	value, _ := s.roomLocks.LoadOrStore(code, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	fn()
}

func (s *Server) releaseRoomLock(code string) {
	s.roomLocks.Delete(code)
}

// ackResult is the single reply a command's acknowledgement callback
// receives. Failures carry a taxonomy code; success carries whatever the
// command produces.
type ackResult struct {
	ID      string            `json:"id,omitempty"`
	Success bool              `json:"success"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Room    *Room             `json:"room,omitempty"`
	Rooms   []*Room           `json:"rooms,omitempty"`
	Strokes []json.RawMessage `json:"strokes,omitempty"`
}

func ackOK() *ackResult {
	return &ackResult{Success: true}
}

func ackRoom(room *Room) *ackResult {
	return &ackResult{Success: true, Room: room}
}

func ackErr(err error) *ackResult {
	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		return &ackResult{Success: false, Code: cmdErr.Code, Message: cmdErr.Message}
	}
	return &ackResult{Success: false, Message: err.Error()}
}
