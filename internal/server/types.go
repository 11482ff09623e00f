package server

import (
	"encoding/json"
	"time"
)

const (
	statusLobby         = "LOBBY"
	statusPickingPrompt = "PICKING_PROMPT"
	statusPlaying       = "PLAYING"
	statusJudging       = "JUDGING"
)

const (
	roleHost   = "host"
	rolePlayer = "player"
)

// Room is the authoritative state of one game session. Field names on the
// wire match what the clients expect back from room:get and room:changed.
type Room struct {
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	HostID            string            `json:"hostId"`
	JudgeID           string            `json:"judgeId,omitempty"`
	CurrentPickerID   string            `json:"currentPickerId,omitempty"`
	CurrentProviderID string            `json:"currentProviderId,omitempty"`
	Status            string            `json:"status"`
	Participants      []Participant     `json:"participants"`
	PendingQueue      []PendingEntry    `json:"pendingQueue,omitempty"`
	CurrentPrompt     string            `json:"currentPrompt,omitempty"`
	Masterpiece       string            `json:"masterpiece,omitempty"`
	Strokes           []json.RawMessage `json:"-"`
	PickerHistory     []string          `json:"pickerHistory,omitempty"`
	TimeLeft          int               `json:"timeLeft"`
	RoundDuration     int               `json:"roundDuration"`
	ChatEnabled       bool              `json:"chatEnabled"`
	IsPrivate         bool              `json:"isPrivate"`
	CurrentTheme      string            `json:"currentTheme,omitempty"`
	MutedPlayers      []string          `json:"mutedPlayers,omitempty"`
	MaxPlayers        int               `json:"maxPlayers"`
	CreatedAt         time.Time         `json:"createdAt"`
	DBID              uint              `json:"-"`
}

type Participant struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type PendingEntry struct {
	UserID    string    `json:"userId"`
	KnockedAt time.Time `json:"knockedAt"`
}

// clone returns a copy safe to hand outside the store lock. Slices are
// copied; stroke payloads are immutable once appended so the raw bytes are
// shared.
func (r *Room) clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Participants = append([]Participant(nil), r.Participants...)
	out.PendingQueue = append([]PendingEntry(nil), r.PendingQueue...)
	out.Strokes = append([]json.RawMessage(nil), r.Strokes...)
	out.PickerHistory = append([]string(nil), r.PickerHistory...)
	out.MutedPlayers = append([]string(nil), r.MutedPlayers...)
	return &out
}

func (r *Room) participant(userID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (r *Room) queued(userID string) bool {
	for _, entry := range r.PendingQueue {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

// atCapacity reports whether another participant would exceed maxPlayers.
// A non-positive maxPlayers means unbounded.
func (r *Room) atCapacity() bool {
	return r.MaxPlayers > 0 && len(r.Participants) >= r.MaxPlayers
}
