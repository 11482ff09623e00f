package server

import (
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/samber/lo"
)

type createRoomPayload struct {
	Name          string `json:"name" validate:"required,max=40"`
	Description   string `json:"description" validate:"max=200"`
	HostID        string `json:"hostId" validate:"required"`
	MaxPlayers    int    `json:"maxPlayers" validate:"min=0,max=32"`
	IsPrivate     bool   `json:"isPrivate"`
	RoundDuration int    `json:"roundDuration" validate:"min=0,max=600"`
}

type roomCodePayload struct {
	Code string `json:"code" validate:"required,len=4"`
}

type userRoomPayload struct {
	Code   string `json:"code" validate:"required,len=4"`
	UserID string `json:"userId" validate:"required"`
}

type targetActionPayload struct {
	Code     string `json:"code" validate:"required,len=4"`
	UserID   string `json:"userId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
}

type updateRoomPayload struct {
	Code          string  `json:"code" validate:"required,len=4"`
	UserID        string  `json:"userId" validate:"required"`
	Name          *string `json:"name,omitempty" validate:"omitempty,max=40"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=200"`
	RoundDuration *int    `json:"roundDuration,omitempty" validate:"omitempty,min=10,max=600"`
	ChatEnabled   *bool   `json:"chatEnabled,omitempty"`
	IsPrivate     *bool   `json:"isPrivate,omitempty"`
	MaxPlayers    *int    `json:"maxPlayers,omitempty" validate:"omitempty,min=1,max=32"`
}

type startPayload struct {
	Code   string `json:"code" validate:"required,len=4"`
	UserID string `json:"userId" validate:"required"`
	Prompt string `json:"prompt" validate:"required,max=140"`
}

type setPromptPayload struct {
	Code   string `json:"code" validate:"required,len=4"`
	UserID string `json:"userId" validate:"required"`
	Prompt string `json:"prompt" validate:"required,max=140"`
}

type masterpiecePayload struct {
	Code        string `json:"code" validate:"required,len=4"`
	Masterpiece string `json:"masterpiece" validate:"required"`
}

type awardCommandPayload struct {
	Code   string `json:"code" validate:"required,len=4"`
	UserID string `json:"userId" validate:"required"`
	Type   string `json:"type" validate:"required,max=32"`
}

func (s *Server) handleCreateRoom(p createRoomPayload) *ackResult {
	if s.moderator.HasBannedContent(p.Name) || s.moderator.HasBannedContent(p.Description) {
		return ackErr(errPolicy("Clean it up! No potty mouth allowed in Room Name or Description."))
	}

	maxPlayers := p.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.cfg.MaxPlayersDefault
	}
	roundDuration := p.RoundDuration
	if roundDuration == 0 {
		roundDuration = s.cfg.RoundSeconds
	}
	room := s.store.CreateRoom(&Room{
		Name:          strings.TrimSpace(p.Name),
		Description:   strings.TrimSpace(p.Description),
		HostID:        p.HostID,
		Status:        statusLobby,
		Participants:  []Participant{{UserID: p.HostID, Role: roleHost}},
		RoundDuration: roundDuration,
		ChatEnabled:   true,
		IsPrivate:     p.IsPrivate,
		MaxPlayers:    maxPlayers,
	})
	log.Printf("room created code=%s host=%s max_players=%d", room.Code, room.HostID, room.MaxPlayers)
	s.persistRoomCreated(room)
	s.broadcastLobby()
	return ackRoom(room)
}

func (s *Server) handleGetRoom(p roomCodePayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	return ackRoom(room)
}

func (s *Server) handleFetchRooms() *ackResult {
	return &ackResult{Success: true, Rooms: s.store.ListRooms()}
}

func (s *Server) handleUpdateRoom(p updateRoomPayload) *ackResult {
	if p.Name != nil && s.moderator.HasBannedContent(*p.Name) {
		return ackErr(errPolicy("Update rejected: Potty mouth detected."))
	}
	if p.Description != nil && s.moderator.HasBannedContent(*p.Description) {
		return ackErr(errPolicy("Update rejected: Potty mouth detected."))
	}

	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can change room settings")
		}
		// Every check runs before the first field is written; a rejected
		// update must leave the room exactly as it was.
		if p.MaxPlayers != nil && *p.MaxPlayers < len(room.Participants) {
			return errCapacity("maxPlayers cannot drop below the current participant count")
		}
		if p.Name != nil {
			room.Name = strings.TrimSpace(*p.Name)
		}
		if p.Description != nil {
			room.Description = strings.TrimSpace(*p.Description)
		}
		if p.RoundDuration != nil {
			room.RoundDuration = *p.RoundDuration
		}
		if p.ChatEnabled != nil {
			room.ChatEnabled = *p.ChatEnabled
		}
		if p.IsPrivate != nil {
			room.IsPrivate = *p.IsPrivate
		}
		if p.MaxPlayers != nil {
			room.MaxPlayers = *p.MaxPlayers
		}
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}

type setThemePayload struct {
	Code    string `json:"code" validate:"required,len=4"`
	ThemeID string `json:"themeId" validate:"required,max=40"`
}

// handleSetTheme syncs the room's visual theme. Any participant's client
// may drive it; the server only keeps the field and relays the change.
func (s *Server) handleSetTheme(p setThemePayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		room.CurrentTheme = p.ThemeID
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	log.Printf("theme changed code=%s theme=%s", room.Code, p.ThemeID)
	s.broadcast.ToRoom(p.Code, evtThemeChanged, themeChangedPayload{ThemeID: p.ThemeID})
	return ackRoom(room)
}

func (s *Server) handleKnock(p userRoomPayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if _, ok := room.participant(p.UserID); ok {
			return errDuplicate("%s is already in the room", p.UserID)
		}
		if room.queued(p.UserID) {
			return errDuplicate("%s already knocked", p.UserID)
		}
		if room.atCapacity() {
			return errCapacity("room %s is full", room.Code)
		}
		room.PendingQueue = append(room.PendingQueue, PendingEntry{
			UserID:    p.UserID,
			KnockedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}

func (s *Server) handleApprove(p targetActionPayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can approve knocks")
		}
		if !room.queued(p.TargetID) {
			return errNotFound("%s is not waiting at the door", p.TargetID)
		}
		if room.atCapacity() {
			return errCapacity("room %s is full", room.Code)
		}
		room.PendingQueue = lo.Filter(room.PendingQueue, func(e PendingEntry, _ int) bool {
			return e.UserID != p.TargetID
		})
		room.Participants = append(room.Participants, Participant{UserID: p.TargetID, Role: rolePlayer})
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	log.Printf("knock approved code=%s user=%s", p.Code, p.TargetID)
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}

func (s *Server) handleReject(p targetActionPayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can reject knocks")
		}
		if !room.queued(p.TargetID) {
			return errNotFound("%s is not waiting at the door", p.TargetID)
		}
		room.PendingQueue = lo.Filter(room.PendingQueue, func(e PendingEntry, _ int) bool {
			return e.UserID != p.TargetID
		})
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}

// pickJudge selects a random judge, preferring candidates other than
// excludeID. With a single candidate the exclusion is waived rather than
// leaving the round judgeless.
func pickJudge(participants []Participant, excludeID string) string {
	candidates := lo.Filter(participants, func(p Participant, _ int) bool {
		return p.UserID != excludeID
	})
	if len(candidates) == 0 {
		candidates = participants
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.IntN(len(candidates))].UserID
}

func (s *Server) handleStart(p startPayload) *ackResult {
	if s.moderator.HasBannedContent(p.Prompt) {
		return ackErr(errPolicy("Prompt rejected: Potty mouth detected."))
	}

	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can start the game")
		}
		if room.Status != statusLobby {
			return errInvalidState("game already running in room %s", room.Code)
		}
		room.Status = statusPlaying
		room.CurrentPrompt = strings.TrimSpace(p.Prompt)
		room.JudgeID = pickJudge(room.Participants, room.HostID)
		room.CurrentProviderID = room.HostID
		room.Strokes = nil
		room.Masterpiece = ""
		room.TimeLeft = room.RoundDuration
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	log.Printf("game started code=%s judge=%s provider=%s", room.Code, room.JudgeID, room.CurrentProviderID)
	s.persistEvent(room, "game_started", map[string]any{"prompt": room.CurrentPrompt, "judgeId": room.JudgeID})
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtGameStarted, gameStartedPayload{
		Prompt:     room.CurrentPrompt,
		JudgeID:    room.JudgeID,
		ProviderID: room.CurrentProviderID,
	})
	s.startRoundTimer(p.Code, room.RoundDuration)
	return ackRoom(room)
}

func (s *Server) handleSetPrompt(p setPromptPayload) *ackResult {
	if s.moderator.HasBannedContent(p.Prompt) {
		return ackErr(errPolicy("Prompt rejected: Potty mouth detected."))
	}

	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.Status != statusPickingPrompt {
			return errInvalidState("room %s is not waiting on a prompt", room.Code)
		}
		if room.CurrentPickerID != p.UserID {
			return errForbidden("only the picker can set the prompt")
		}
		room.Status = statusPlaying
		room.CurrentPrompt = strings.TrimSpace(p.Prompt)
		room.JudgeID = pickJudge(room.Participants, p.UserID)
		room.CurrentPickerID = ""
		room.CurrentProviderID = p.UserID
		room.Strokes = nil
		room.Masterpiece = ""
		room.TimeLeft = room.RoundDuration
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	s.timers.Cancel(p.Code, timerPicker)
	log.Printf("prompt set code=%s picker=%s judge=%s", room.Code, p.UserID, room.JudgeID)
	s.persistEvent(room, "game_started", map[string]any{"prompt": room.CurrentPrompt, "judgeId": room.JudgeID})
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtGameStarted, gameStartedPayload{
		Prompt:     room.CurrentPrompt,
		JudgeID:    room.JudgeID,
		ProviderID: room.CurrentProviderID,
	})
	s.startRoundTimer(p.Code, room.RoundDuration)
	return ackRoom(room)
}

// startRoundTimer drives the drawing phase. Each tick persists timeLeft so
// reconnecting clients resync without an extra round trip. Expiry only
// signals the clients to submit; the room stays in PLAYING until an
// explicit masterpiece submission arrives.
func (s *Server) startRoundTimer(code string, seconds int) {
	s.timers.Start(code, timerRound, seconds,
		func(left int) {
			// Ticks skip the room lock, so one can land after a
			// submission has already moved the room to judging. The
			// status check stops it from clobbering the judging clock.
			_, err := s.store.UpdateRoom(code, func(room *Room) error {
				if room.Status != statusPlaying {
					return errInvalidState("round already over in room %s", code)
				}
				room.TimeLeft = left
				return nil
			})
			if err != nil {
				return
			}
			s.broadcast.ToRoom(code, evtTimerUpdate, timeLeftPayload{TimeLeft: left})
		},
		func() {
			log.Printf("round time up code=%s", code)
			s.broadcast.ToRoom(code, evtTimerEnded, nil)
		})
}

func (s *Server) handleSubmitMasterpiece(p masterpiecePayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.Status != statusPlaying {
			return errInvalidState("room %s has no round in progress", room.Code)
		}
		room.Status = statusJudging
		room.Masterpiece = p.Masterpiece
		room.TimeLeft = s.cfg.JudgingSeconds
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	s.timers.Cancel(p.Code, timerRound)
	log.Printf("judging started code=%s judge=%s", room.Code, room.JudgeID)
	s.persistEvent(room, "judging_started", map[string]any{"judgeId": room.JudgeID})
	s.broadcast.ToRoom(p.Code, evtJudgingStarted, judgingStartedPayload{
		Masterpiece: room.Masterpiece,
		JudgeID:     room.JudgeID,
	})
	s.startJudgingTimer(p.Code)
	return ackRoom(room)
}

func (s *Server) startJudgingTimer(code string) {
	s.timers.Start(code, timerJudging, s.cfg.JudgingSeconds,
		func(left int) {
			s.broadcast.ToRoom(code, evtJudgingTimerTick, timeLeftPayload{TimeLeft: left})
		},
		func() {
			s.withRoom(code, func() {
				log.Printf("judging timed out code=%s", code)
				s.broadcast.ToRoom(code, evtToastError, "Judge fell asleep! Moving to next round.")
				s.rotatePicker(code)
			})
		})
}

func (s *Server) handleAward(p awardCommandPayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	if room.Status != statusJudging {
		return ackErr(errInvalidState("room %s is not judging", p.Code))
	}
	if room.JudgeID != p.UserID {
		return ackErr(errForbidden("only the judge hands out medals"))
	}

	s.timers.Cancel(p.Code, timerJudging)
	log.Printf("medal awarded code=%s judge=%s type=%s", p.Code, p.UserID, p.Type)
	s.persistEvent(room, "medal_awarded", map[string]any{"type": p.Type, "judgeId": p.UserID})
	s.broadcast.ToRoom(p.Code, evtIncomingAward, awardPayload{Type: p.Type})

	// Leave time for the confetti before the next selection phase. The
	// scheduled rotation dies with the room if it is deleted first.
	delay := time.Duration(s.cfg.AwardDelaySeconds) * time.Second
	s.timers.Schedule(p.Code, delay, func() {
		s.withRoom(p.Code, func() {
			s.rotatePicker(p.Code)
		})
	})
	return ackOK()
}

type reactPayload struct {
	Code string  `json:"code" validate:"required,len=4"`
	Type string  `json:"type" validate:"required,max=32"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Server) handleReact(p reactPayload, connID string) *ackResult {
	if _, ok := s.store.GetRoom(p.Code); !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	s.broadcast.ToRoomExcept(p.Code, connID, evtIncomingReaction, reactionPayload{
		Type: p.Type,
		X:    p.X,
		Y:    p.Y,
	})
	return ackOK()
}

func (s *Server) handleFinish(p userRoomPayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can finish the game")
		}
		if room.Status != statusPlaying && room.Status != statusJudging {
			return errInvalidState("room %s has no game to finish", room.Code)
		}
		clearRoundState(room)
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	s.timers.CancelAll(p.Code)
	log.Printf("game finished code=%s", p.Code)
	s.persistEvent(room, "game_finished", nil)
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoundEnded, nil)
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}

func (s *Server) handleAbort(p userRoomPayload) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can abort the game")
		}
		clearRoundState(room)
		// Aborting sends everyone back to the discovery lobby; only the
		// host remains in the room.
		room.Participants = lo.Filter(room.Participants, func(pt Participant, _ int) bool {
			return pt.UserID == room.HostID
		})
		room.PendingQueue = nil
		room.PickerHistory = nil
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	s.timers.CancelAll(p.Code)
	log.Printf("game aborted code=%s", p.Code)
	s.persistEvent(room, "game_aborted", nil)
	s.broadcast.ToRoom(p.Code, evtRoomAborted, nil)
	s.broadcastLobby()
	return ackRoom(room)
}

// clearRoundState resets every transient round field and returns the room
// to the lobby. Participants are untouched.
func clearRoundState(room *Room) {
	room.Status = statusLobby
	room.CurrentPrompt = ""
	room.Masterpiece = ""
	room.JudgeID = ""
	room.CurrentPickerID = ""
	room.CurrentProviderID = ""
	room.Strokes = nil
	room.TimeLeft = 0
}

func (s *Server) handleKick(p targetActionPayload) *ackResult {
	wasPicker := false
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can kick players")
		}
		if p.TargetID == room.HostID {
			return errForbidden("the host cannot kick themselves")
		}
		if _, ok := room.participant(p.TargetID); !ok {
			return errNotFound("%s is not in the room", p.TargetID)
		}
		wasPicker = room.Status == statusPickingPrompt && room.CurrentPickerID == p.TargetID
		room.Participants = lo.Filter(room.Participants, func(pt Participant, _ int) bool {
			return pt.UserID != p.TargetID
		})
		return nil
	})
	if err != nil {
		return ackErr(err)
	}

	log.Printf("player kicked code=%s target=%s was_picker=%t", p.Code, p.TargetID, wasPicker)
	s.broadcast.ToRoom(p.Code, evtRoomKicked, kickedPayload{UserID: p.TargetID})
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	if wasPicker {
		s.rotatePicker(p.Code)
	}
	return ackRoom(room)
}

func (s *Server) handleLeave(p userRoomPayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	isHost := room.HostID == p.UserID
	isPicker := room.CurrentPickerID == p.UserID
	isJudge := room.JudgeID == p.UserID
	status := room.Status

	if isHost {
		// The room dies with the host; stop everything before the store
		// forgets it.
		s.timers.CancelAll(p.Code)
	}

	result, err := s.store.RemoveParticipant(p.Code, p.UserID)
	if err != nil {
		return ackErr(err)
	}

	if result.Deleted {
		log.Printf("room revoked code=%s reason=host_left", p.Code)
		s.broadcastLobby()
		s.broadcast.ToRoom(p.Code, evtRoomDeleted, nil)
		s.releaseRoomLock(p.Code)
		return ackOK()
	}

	log.Printf("player left code=%s user=%s status=%s", p.Code, p.UserID, status)
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoomChanged, result.Room)

	switch {
	case status == statusPickingPrompt && isPicker:
		s.broadcast.ToRoom(p.Code, evtToastError, "The Picker abandoned the mission! Selecting a new one...")
		s.rotatePicker(p.Code)
	case status == statusJudging && isJudge:
		s.timers.Cancel(p.Code, timerJudging)
		s.broadcast.ToRoom(p.Code, evtToastError, "The Judge fled! Skipping to next round...")
		s.rotatePicker(p.Code)
	case status == statusPlaying && isJudge:
		s.reassignJudge(p.Code)
	}
	return ackOK()
}

// reassignJudge replaces a judge who left mid-drawing. The round keeps
// going with a random remaining participant, never the round's provider
// unless nobody else is left to take the gavel.
func (s *Server) reassignJudge(code string) {
	room, err := s.store.UpdateRoom(code, func(room *Room) error {
		candidates := lo.Filter(room.Participants, func(p Participant, _ int) bool {
			return p.UserID != room.CurrentProviderID
		})
		if len(candidates) == 0 {
			return errInvalidState("no judge candidates left")
		}
		room.JudgeID = candidates[rand.IntN(len(candidates))].UserID
		return nil
	})
	if err != nil {
		log.Printf("judge reassignment failed code=%s error=%v", code, err)
		s.broadcast.ToRoom(code, evtToastError, "No one left to judge! Aborting round.")
		s.rotatePicker(code)
		return
	}
	log.Printf("judge reassigned code=%s judge=%s", code, room.JudgeID)
	s.broadcast.ToRoom(code, evtRoomChanged, room)
	s.broadcast.ToRoom(code, evtToastInfo, room.JudgeID+" is the new Judge!")
}

func (s *Server) handleDelete(p userRoomPayload) *ackResult {
	room, ok := s.store.GetRoom(p.Code)
	if !ok {
		return ackErr(errNotFound("room %s not found", p.Code))
	}
	if room.HostID != p.UserID {
		return ackErr(errForbidden("only the host can delete the room"))
	}

	s.timers.CancelAll(p.Code)
	s.store.DeleteRoom(p.Code)
	log.Printf("room deleted code=%s", p.Code)
	s.persistEvent(room, "room_deleted", nil)
	s.broadcastLobby()
	s.broadcast.ToRoom(p.Code, evtRoomDeleted, nil)
	s.releaseRoomLock(p.Code)
	return ackOK()
}

func (s *Server) handleMute(p targetActionPayload, muted bool) *ackResult {
	room, err := s.store.UpdateRoom(p.Code, func(room *Room) error {
		if room.HostID != p.UserID {
			return errForbidden("only the host can mute players")
		}
		if muted {
			if !lo.Contains(room.MutedPlayers, p.TargetID) {
				room.MutedPlayers = append(room.MutedPlayers, p.TargetID)
			}
			return nil
		}
		room.MutedPlayers = lo.Filter(room.MutedPlayers, func(id string, _ int) bool {
			return id != p.TargetID
		})
		return nil
	})
	if err != nil {
		return ackErr(err)
	}
	s.broadcast.ToRoom(p.Code, evtRoomChanged, room)
	return ackRoom(room)
}
