package server

import "encoding/json"

type strokePayload struct {
	Code   string          `json:"code" validate:"required,len=4"`
	Stroke json.RawMessage `json:"stroke" validate:"required"`
}

// handleStroke appends one stroke to the round's log and echoes it to the
// other connections. Stroke payloads are opaque to the engine; they are
// stored and replayed exactly as received.
func (s *Server) handleStroke(p strokePayload, connID string) *ackResult {
	_, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		room.Strokes = append(room.Strokes, p.Stroke)
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	s.broadcast.ToRoomExcept(p.Code, connID, evtDrawIncoming, p.Stroke)
	return ackOK()
}

// handleSync replays the current round's stroke log to a client that
// joined or reconnected mid-round.
func (s *Server) handleSync(p roomCodePayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	return &ackResult{Success: true, Strokes: room.Strokes}
}
