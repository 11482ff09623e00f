package server

import (
	"time"

	"github.com/samber/lo"
)

type chatSendPayload struct {
	Code    string `json:"code" validate:"required,len=4"`
	UserID  string `json:"userId" validate:"required"`
	Message string `json:"message" validate:"required,max=500"`
}

// handleChatSend delivers a chat line to the room. Muted senders are
// dropped without an error, and flagged text is replaced rather than
// rejected: conversation keeps flowing where creation-time content would
// have been refused.
func (s *Server) handleChatSend(p chatSendPayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	if !room.ChatEnabled {
		return ackOK()
	}
	if lo.Contains(room.MutedPlayers, p.UserID) {
		return ackOK()
	}
	s.broadcast.ToRoom(p.Code, evtChatIncoming, chatIncomingPayload{
		UserID:    p.UserID,
		Message:   s.moderator.Redact(p.Message),
		Timestamp: time.Now().UnixMilli(),
	})
	return ackOK()
}
