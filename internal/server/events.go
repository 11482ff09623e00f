package server

const (
	evtServerInit       = "server:init"
	evtLobbyUpdated     = "lobby:updated"
	evtRoomChanged      = "room:changed"
	evtRoomDeleted      = "room:deleted"
	evtRoomKicked       = "room:kicked"
	evtRoomAborted      = "room:aborted"
	evtThemeChanged     = "room:theme-changed"
	evtGameStarted      = "game:started"
	evtJudgingStarted   = "game:judging-started"
	evtRoundEnded       = "game:round-ended"
	evtPickerChosen     = "game:picker-chosen"
	evtTimerUpdate      = "timer:update"
	evtTimerEnded       = "timer:ended"
	evtPickerTimerTick  = "picker:timer:tick"
	evtJudgingTimerTick = "judging:timer:tick"
	evtDrawIncoming     = "draw:incoming"
	evtChatIncoming     = "chat:incoming"
	evtIncomingAward    = "judging:incoming-award"
	evtIncomingReaction = "judging:incoming-reaction"
	evtToastError       = "toast:error"
	evtToastInfo        = "toast:info"
)

// broadcaster is the fan-out surface the engine emits through. The
// websocket hub implements it in production; tests substitute a recorder.
type broadcaster interface {
	ToRoom(code, event string, data any)
	// ToRoomExcept skips the connection that originated the command, for
	// echoes the sender already applied locally (strokes, reactions).
	ToRoomExcept(code, exceptConnID, event string, data any)
	// ToAll reaches every connection, subscribed or not; used for the
	// discovery lobby listing.
	ToAll(event string, data any)
}

type gameStartedPayload struct {
	Prompt     string `json:"prompt"`
	JudgeID    string `json:"judgeId"`
	ProviderID string `json:"providerId"`
}

type judgingStartedPayload struct {
	Masterpiece string `json:"masterpiece"`
	JudgeID     string `json:"judgeId"`
}

type pickerChosenPayload struct {
	PickerID string `json:"pickerId"`
	TimeLeft int    `json:"timeLeft"`
}

type timeLeftPayload struct {
	TimeLeft int `json:"timeLeft"`
}

type themeChangedPayload struct {
	ThemeID string `json:"themeId"`
}

type kickedPayload struct {
	UserID string `json:"userId"`
}

type awardPayload struct {
	Type string `json:"type"`
}

type reactionPayload struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type chatIncomingPayload struct {
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type serverInitPayload struct {
	BootID string `json:"bootId"`
}

type lobbyListing struct {
	Rooms []*Room `json:"rooms"`
}
