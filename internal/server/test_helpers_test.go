package server

import (
	"sync"
	"testing"
	"time"

	"scribble-squad/internal/config"
)

type sentEvent struct {
	Code   string
	Except string
	Event  string
	Data   any
}

// recorder captures everything the engine broadcasts so tests can assert
// on the event stream without a live websocket.
type recorder struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recorder) ToRoom(code, event string, data any) {
	r.record(sentEvent{Code: code, Event: event, Data: data})
}

func (r *recorder) ToRoomExcept(code, exceptConnID, event string, data any) {
	r.record(sentEvent{Code: code, Except: exceptConnID, Event: event, Data: data})
}

func (r *recorder) ToAll(event string, data any) {
	r.record(sentEvent{Event: event, Data: data})
}

func (r *recorder) record(e sentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, e)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.sent {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) (sentEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Event == event {
			return r.sent[i], true
		}
	}
	return sentEvent{}, false
}

// newEngine builds a Server with no database, the recorder in place of the
// websocket hub, and a fast-ticking timer registry so countdown tests run
// in milliseconds.
func newEngine(t *testing.T) (*Server, *recorder) {
	t.Helper()
	s, err := New(nil, config.Default())
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	rec := &recorder{}
	s.broadcast = rec
	s.timers = newTimerRegistryWithInterval(5 * time.Millisecond)
	return s, rec
}

func createTestRoom(t *testing.T, s *Server, hostID string, maxPlayers int) *Room {
	t.Helper()
	ack := s.handleCreateRoom(createRoomPayload{
		Name:       "Doodle Den",
		HostID:     hostID,
		MaxPlayers: maxPlayers,
	})
	if !ack.Success {
		t.Fatalf("creating room: %s %s", ack.Code, ack.Message)
	}
	return ack.Room
}

// admit knocks and approves userID in one step.
func admit(t *testing.T, s *Server, code, hostID, userID string) {
	t.Helper()
	if ack := s.handleKnock(userRoomPayload{Code: code, UserID: userID}); !ack.Success {
		t.Fatalf("knock for %s: %s %s", userID, ack.Code, ack.Message)
	}
	ack := s.handleApprove(targetActionPayload{Code: code, UserID: hostID, TargetID: userID})
	if !ack.Success {
		t.Fatalf("approve for %s: %s %s", userID, ack.Code, ack.Message)
	}
}

func mustGetRoom(t *testing.T, s *Server, code string) *Room {
	t.Helper()
	room, ok := s.store.GetRoom(code)
	if !ok {
		t.Fatalf("room %s missing from store", code)
	}
	return room
}

// waitForStatus polls until the room reaches status or the deadline hits.
func waitForStatus(t *testing.T, s *Server, code, status string) *Room {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		room, ok := s.store.GetRoom(code)
		if ok && room.Status == status {
			return room
		}
		time.Sleep(5 * time.Millisecond)
	}
	room, _ := s.store.GetRoom(code)
	t.Fatalf("room %s never reached %s, last seen %+v", code, status, room)
	return nil
}
