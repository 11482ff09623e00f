package server

import (
	"log"
	"math/rand/v2"

	"github.com/samber/lo"
)

// nextPicker selects the next prompt picker uniformly among participants
// who have not picked in the current cycle. When everyone has had a turn
// the history resets and the whole room is eligible again, so nobody is
// ever permanently excluded.
func nextPicker(participants []Participant, history []string) (pickerID string, updated []string) {
	if len(participants) == 0 {
		return "", history
	}
	eligible := lo.Filter(participants, func(p Participant, _ int) bool {
		return !lo.Contains(history, p.UserID)
	})
	if len(eligible) == 0 {
		history = nil
		eligible = participants
	}
	pickerID = eligible[rand.IntN(len(eligible))].UserID
	return pickerID, append(history, pickerID)
}

// rotatePicker is the single reentry point for "start the next round's
// selection phase". It runs after a medal award and on every recovery path
// (picker kicked, picker left, picker timed out, judge abandoned). Any
// stale picker timer is cancelled first so two timers never race to
// advance the same room.
func (s *Server) rotatePicker(code string) {
	s.timers.Cancel(code, timerPicker)

	room, err := s.store.UpdateRoom(code, func(room *Room) error {
		if len(room.Participants) == 0 {
			room.Status = statusLobby
			room.CurrentPickerID = ""
			room.CurrentProviderID = ""
			room.JudgeID = ""
			room.CurrentPrompt = ""
			room.Masterpiece = ""
			room.Strokes = nil
			room.TimeLeft = 0
			return nil
		}
		pickerID, history := nextPicker(room.Participants, room.PickerHistory)
		room.Status = statusPickingPrompt
		room.CurrentPickerID = pickerID
		room.CurrentProviderID = pickerID
		room.PickerHistory = history
		room.JudgeID = ""
		room.CurrentPrompt = ""
		room.Masterpiece = ""
		room.Strokes = nil
		room.TimeLeft = s.cfg.PickerSeconds
		return nil
	})
	if err != nil {
		// Room disappeared before the rotation fired; nothing to advance.
		log.Printf("picker rotation skipped code=%s error=%v", code, err)
		return
	}

	if room.Status == statusLobby {
		log.Printf("picker rotation fell back to lobby code=%s reason=empty_room", code)
		s.broadcast.ToRoom(code, evtRoomChanged, room)
		return
	}

	log.Printf("picker chosen code=%s picker=%s", code, room.CurrentPickerID)
	s.persistEvent(room, "picker_chosen", map[string]any{"pickerId": room.CurrentPickerID})
	s.broadcastLobby()
	s.broadcast.ToRoom(code, evtRoundEnded, nil)
	s.broadcast.ToRoom(code, evtPickerChosen, pickerChosenPayload{
		PickerID: room.CurrentPickerID,
		TimeLeft: room.TimeLeft,
	})
	s.startPickerTimer(code)
}

func (s *Server) startPickerTimer(code string) {
	s.timers.Start(code, timerPicker, s.cfg.PickerSeconds,
		func(left int) {
			s.broadcast.ToRoom(code, evtPickerTimerTick, timeLeftPayload{TimeLeft: left})
		},
		func() {
			s.withRoom(code, func() {
				log.Printf("picker timed out code=%s", code)
				s.broadcast.ToRoom(code, evtToastError, "The Picker abandoned the mission! Selecting a new one...")
				s.rotatePicker(code)
			})
		})
}
