package server

import (
	"encoding/json"
	"log"
	"time"

	"scribble-squad/internal/db"

	"gorm.io/datatypes"
)

// The journal is best-effort and write-only: the engine never reads it
// back, it exists so a durable store can be swapped in without touching
// the state machine. Every persist call is a no-op without a DB handle.

func (s *Server) persistRoomCreated(room *Room) {
	if s.db == nil {
		return
	}
	record := db.Room{
		Code:       room.Code,
		Name:       room.Name,
		HostID:     room.HostID,
		MaxPlayers: room.MaxPlayers,
		IsPrivate:  room.IsPrivate,
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("persist room failed code=%s error=%v", room.Code, err)
		return
	}
	room.DBID = record.ID
	_, _ = s.store.UpdateRoom(room.Code, func(r *Room) error {
		r.DBID = record.ID
		return nil
	})
	s.persistEvent(room, "room_created", map[string]any{"hostId": room.HostID})
}

func (s *Server) persistEvent(room *Room, eventType string, payload map[string]any) {
	if s.db == nil || room == nil || room.DBID == 0 {
		return
	}
	data := datatypes.JSON("{}")
	if payload != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			data = datatypes.JSON(encoded)
		}
	}
	record := db.Event{
		RoomID:    room.DBID,
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("persist event failed code=%s type=%s error=%v", room.Code, eventType, err)
	}
}
