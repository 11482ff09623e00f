package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsConn struct {
	id   string
	sock *websocket.Conn
	mu   sync.Mutex
}

// send serializes writes; gorilla connections do not allow concurrent
// writers and this connection is written to by the read loop's acks and
// every broadcast goroutine.
func (c *wsConn) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

type eventEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// wsHub tracks every live connection plus the room-scoped subscription
// groups. It is the production broadcaster implementation.
type wsHub struct {
	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	groups map[string]map[*wsConn]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		conns:  make(map[*wsConn]struct{}),
		groups: make(map[string]map[*wsConn]struct{}),
	}
}

func (h *wsHub) Add(conn *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *wsHub) Remove(conn *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
	for code, group := range h.groups {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.groups, code)
		}
	}
	_ = conn.sock.Close()
}

func (h *wsHub) Join(code string, conn *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		group = make(map[*wsConn]struct{})
		h.groups[code] = group
	}
	group[conn] = struct{}{}
}

func (h *wsHub) Leave(code string, conn *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		return
	}
	delete(group, conn)
	if len(group) == 0 {
		delete(h.groups, code)
	}
}

func (h *wsHub) roomConns(code string) []*wsConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	conns := make([]*wsConn, 0, len(group))
	for conn := range group {
		conns = append(conns, conn)
	}
	return conns
}

func (h *wsHub) allConns() []*wsConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*wsConn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (h *wsHub) ToRoom(code, event string, data any) {
	h.deliver(h.roomConns(code), "", event, data)
}

func (h *wsHub) ToRoomExcept(code, exceptConnID, event string, data any) {
	h.deliver(h.roomConns(code), exceptConnID, event, data)
}

func (h *wsHub) ToAll(event string, data any) {
	h.deliver(h.allConns(), "", event, data)
}

func (h *wsHub) deliver(conns []*wsConn, exceptConnID, event string, data any) {
	payload := eventEnvelope{Event: event, Data: data}
	for _, conn := range conns {
		if exceptConnID != "" && conn.id == exceptConnID {
			continue
		}
		if err := conn.send(payload); err != nil {
			h.Remove(conn)
		}
	}
}

// commandEnvelope is one inbound command. When ID is set the sender wants
// an acknowledgement; it is invoked exactly once per command.
type commandEnvelope struct {
	ID     string          `json:"id,omitempty"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{id: uuid.NewString(), sock: sock}
	log.Printf("ws connected conn_id=%s remote=%s", conn.id, r.RemoteAddr)
	s.hub.Add(conn)
	// The boot id lets clients detect a server restart and resync.
	_ = conn.send(eventEnvelope{Event: evtServerInit, Data: serverInitPayload{BootID: s.bootID}})
	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *wsConn) {
	defer func() {
		s.hub.Remove(conn)
		log.Printf("ws disconnected conn_id=%s", conn.id)
	}()
	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			return
		}
		var env commandEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws bad envelope conn_id=%s error=%v", conn.id, err)
			continue
		}
		ack := s.dispatch(conn, env)
		if env.ID != "" && ack != nil {
			ack.ID = env.ID
			if err := conn.send(ack); err != nil {
				return
			}
		}
	}
}

func decodePayload[T any](s *Server, data json.RawMessage) (T, error) {
	var payload T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return payload, fmt.Errorf("malformed payload: %w", err)
		}
	}
	if err := s.validate.Struct(&payload); err != nil {
		return payload, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

// dispatch routes one command to its handler. Room-mutating commands run
// under the room's lock so commands and timer callbacks never interleave.
func (s *Server) dispatch(conn *wsConn, env commandEnvelope) (ack *ackResult) {
	switch env.Action {
	case "rooms:fetch":
		ack = s.handleFetchRooms()

	case "room:get":
		p, err := decodePayload[roomCodePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		ack = s.handleGetRoom(p)

	case "room:create":
		p, err := decodePayload[createRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		ack = s.handleCreateRoom(p)

	case "room:join":
		p, err := decodePayload[roomCodePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.hub.Join(p.Code, conn)
		ack = ackOK()

	case "room:leave-socket":
		p, err := decodePayload[roomCodePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.hub.Leave(p.Code, conn)
		ack = ackOK()

	case "room:update":
		p, err := decodePayload[updateRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleUpdateRoom(p) })

	case "room:set-theme":
		p, err := decodePayload[setThemePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleSetTheme(p) })

	case "room:knock":
		p, err := decodePayload[userRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleKnock(p) })

	case "room:approve":
		p, err := decodePayload[targetActionPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleApprove(p) })

	case "room:reject":
		p, err := decodePayload[targetActionPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleReject(p) })

	case "room:start":
		p, err := decodePayload[startPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleStart(p) })

	case "room:set-prompt":
		p, err := decodePayload[setPromptPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleSetPrompt(p) })

	case "room:submit-masterpiece":
		p, err := decodePayload[masterpiecePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleSubmitMasterpiece(p) })

	case "judging:award":
		p, err := decodePayload[awardCommandPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleAward(p) })

	case "judging:react":
		p, err := decodePayload[reactPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		ack = s.handleReact(p, conn.id)

	case "room:finish":
		p, err := decodePayload[userRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleFinish(p) })

	case "room:abort":
		p, err := decodePayload[userRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleAbort(p) })

	case "room:kick":
		p, err := decodePayload[targetActionPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleKick(p) })

	case "room:leave":
		p, err := decodePayload[userRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleLeave(p) })
		s.hub.Leave(p.Code, conn)

	case "room:delete":
		p, err := decodePayload[userRoomPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleDelete(p) })

	case "room:mute-player":
		p, err := decodePayload[targetActionPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleMute(p, true) })

	case "room:unmute-player":
		p, err := decodePayload[targetActionPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleMute(p, false) })

	case "draw:stroke":
		p, err := decodePayload[strokePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		s.withRoom(p.Code, func() { ack = s.handleStroke(p, conn.id) })

	case "draw:sync":
		p, err := decodePayload[roomCodePayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		ack = s.handleSync(p)

	case "chat:send":
		p, err := decodePayload[chatSendPayload](s, env.Data)
		if err != nil {
			return ackErr(err)
		}
		ack = s.handleChatSend(p)

	default:
		return ackErr(fmt.Errorf("unknown action %q", env.Action))
	}
	return ack
}
