package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"scribble-squad/internal/config"
	"scribble-squad/internal/moderation"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Server is the room session engine plus its collaborators: the in-memory
// store, the timer registry, the content moderator, the websocket hub, and
// the optional persistence journal. conn may be nil; the engine is
// memory-authoritative either way.
type Server struct {
	store     *Store
	db        *gorm.DB
	hub       *wsHub
	broadcast broadcaster
	cfg       config.Config
	timers    *timerRegistry
	moderator *moderation.Moderator
	validate  *validator.Validate
	bootID    string
	roomLocks sync.Map
}

func New(conn *gorm.DB, cfg config.Config) (*Server, error) {
	moderator, err := moderation.NewModerator(moderation.DefaultDenyList, moderation.RedactedMessage)
	if err != nil {
		return nil, fmt.Errorf("build moderator: %w", err)
	}
	hub := newWSHub()
	return &Server{
		store:     NewStore(),
		db:        conn,
		hub:       hub,
		broadcast: hub,
		cfg:       cfg,
		timers:    newTimerRegistry(),
		moderator: moderator,
		validate:  validator.New(),
		bootID:    fmt.Sprintf("%d", time.Now().UnixMilli()),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	return mux
}

// broadcastLobby refreshes the room-discovery listing on every connection.
func (s *Server) broadcastLobby() {
	s.broadcast.ToAll(evtLobbyUpdated, lobbyListing{Rooms: s.store.ListRooms()})
}
