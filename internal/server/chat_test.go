package server

import (
	"testing"

	"scribble-squad/internal/moderation"
)

func TestChatDeliversCleanMessage(t *testing.T) {
	s, rec := newEngine(t)
	room := createTestRoom(t, s, "host", 0)
	admit(t, s, room.Code, "host", "ada")

	ack := s.handleChatSend(chatSendPayload{Code: room.Code, UserID: "ada", Message: "nice cat!"})
	if !ack.Success {
		t.Fatalf("chat failed: %+v", ack)
	}
	event, ok := rec.last(evtChatIncoming)
	if !ok {
		t.Fatalf("expected chat:incoming broadcast")
	}
	payload := event.Data.(chatIncomingPayload)
	if payload.UserID != "ada" || payload.Message != "nice cat!" {
		t.Fatalf("unexpected chat payload %+v", payload)
	}
	if payload.Timestamp == 0 {
		t.Fatalf("expected a timestamp")
	}
}

func TestChatRedactsFlaggedMessage(t *testing.T) {
	s, rec := newEngine(t)
	room := createTestRoom(t, s, "host", 0)

	ack := s.handleChatSend(chatSendPayload{
		Code:    room.Code,
		UserID:  "host",
		Message: "what the " + moderation.DefaultDenyList[0],
	})
	if !ack.Success {
		t.Fatalf("flagged chat must still ack: %+v", ack)
	}
	event, ok := rec.last(evtChatIncoming)
	if !ok {
		t.Fatalf("flagged chat must still broadcast")
	}
	if got := event.Data.(chatIncomingPayload).Message; got != moderation.RedactedMessage {
		t.Fatalf("expected %q, got %q", moderation.RedactedMessage, got)
	}
}

func TestChatDropsMutedSender(t *testing.T) {
	s, rec := newEngine(t)
	room := createTestRoom(t, s, "host", 0)
	admit(t, s, room.Code, "host", "ada")
	s.handleMute(targetActionPayload{Code: room.Code, UserID: "host", TargetID: "ada"}, true)

	ack := s.handleChatSend(chatSendPayload{Code: room.Code, UserID: "ada", Message: "hello?"})
	if !ack.Success {
		t.Fatalf("muted chat acks silently: %+v", ack)
	}
	if rec.count(evtChatIncoming) != 0 {
		t.Fatalf("muted sender must not reach the room")
	}
}

func TestChatDisabledRoomStaysSilent(t *testing.T) {
	s, rec := newEngine(t)
	room := createTestRoom(t, s, "host", 0)
	off := false
	s.handleUpdateRoom(updateRoomPayload{Code: room.Code, UserID: "host", ChatEnabled: &off})

	ack := s.handleChatSend(chatSendPayload{Code: room.Code, UserID: "host", Message: "anyone?"})
	if !ack.Success {
		t.Fatalf("chat on a silent room still acks: %+v", ack)
	}
	if rec.count(evtChatIncoming) != 0 {
		t.Fatalf("disabled chat must not broadcast")
	}
}
