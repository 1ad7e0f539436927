// Package socket is the realtime channel between players and the matchmaker.
package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	msgUnknownEvent    = "unknown event"
	msgInvalidResponse = "invalid auth response"
)

var ErrNoMatchmaker = errors.New("hub has no matchmaker bound")

// Config holds the hub dependencies.
type Config struct {
	Logger i.Logger
	// CheckOrigin decides which browser origins may connect; nil accepts any.
	CheckOrigin func(r *http.Request) bool
}

// Hub tracks live connections, routes their events to the matchmaker and implements
// i.Notifier for the matchmaker's outbound events.
type Hub struct {
	logger     i.Logger
	upgrader   websocket.Upgrader
	validate   *validator.Validate
	matchmaker i.Matchmaker
	mu         sync.RWMutex
	clients    map[dmn.ConnectionHandle]*client
}

// NewHub creates a Hub. Bind must be called before connections are served.
func NewHub(c *Config) (*Hub, error) {
	if c == nil || c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	checkOrigin := c.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		logger: c.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		validate: validator.New(),
		clients:  make(map[dmn.ConnectionHandle]*client),
	}, nil
}

// Bind sets the matchmaker that receives player events.
func (h *Hub) Bind(mm i.Matchmaker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matchmaker = mm
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	bound := h.matchmaker != nil
	h.mu.RUnlock()
	if !bound {
		h.logger.Error(ErrNoMatchmaker.Error())
		http.Error(w, ErrNoMatchmaker.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warning(fmt.Sprintf("WebSocket upgrade error: %v", err))
		return
	}

	c := newClient(h, uuid.New(), conn)
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info(fmt.Sprintf("Client %s connected from %s", c.id, conn.RemoteAddr()))

	c.run()
}

// Send delivers event to each listed connection. Unknown or congested connections are skipped.
func (h *Hub) Send(event string, payload interface{}, to ...dmn.ConnectionHandle) {
	msg, err := encode(event, payload, nil)
	if err != nil {
		h.logger.Error(fmt.Sprintf("Encoding %s: %v", event, err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range to {
		c, ok := h.clients[id]
		if !ok {
			h.logger.Debug(fmt.Sprintf("Dropping %s for disconnected client %s", event, id))
			continue
		}
		if !c.enqueue(msg) {
			h.logger.Warning(fmt.Sprintf("Send buffer full for %s, dropping %s", id, event))
		}
	}
}

// Connected returns the number of live connections.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	mm := h.matchmaker
	h.mu.Unlock()

	h.logger.Info(fmt.Sprintf("Client %s disconnected", c.id))
	if mm != nil {
		mm.Leave(c.id)
	}
}

func (h *Hub) dispatch(c *client, raw []byte) {
	var frame inbound
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.logger.Warning(fmt.Sprintf("Malformed frame from %s: %v", c.id, err))
		h.Send(dmn.EventMatchError, dmn.MatchErrorPayload{Error: msgUnknownEvent, Details: err.Error()}, c.id)
		return
	}

	h.mu.RLock()
	mm := h.matchmaker
	h.mu.RUnlock()

	switch frame.Event {
	case dmn.EventJoin:
		var p dmn.JoinPayload
		outcome := dmn.Invalid
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.logger.Warning(fmt.Sprintf("Undecodable join from %s: %v", c.id, err))
		} else {
			outcome = mm.Join(c.ctx, p.Address, p.Username, c.id)
		}
		h.ack(c, frame.Ack, outcome.Ack())

	case dmn.EventAuthResponse:
		var p dmn.AuthResponsePayload
		err := json.Unmarshal(frame.Data, &p)
		if err == nil {
			err = h.validate.Struct(p)
		}
		if err != nil {
			h.logger.Warning(fmt.Sprintf("Invalid auth response from %s: %v", c.id, err))
			h.Send(dmn.EventMatchError, dmn.MatchErrorPayload{MatchID: p.MatchID, Error: msgInvalidResponse, Details: err.Error()}, c.id)
			return
		}
		if err := mm.SubmitAuthorization(c.ctx, p.MatchID, p.Player, p.Entry, c.id); err != nil {
			h.logger.Debug(fmt.Sprintf("Auth response from %s for %s: %v", c.id, p.MatchID, err))
		}

	default:
		h.logger.Warning(fmt.Sprintf("Unknown event %q from %s", frame.Event, c.id))
		h.Send(dmn.EventMatchError, dmn.MatchErrorPayload{Error: msgUnknownEvent, Details: frame.Event}, c.id)
	}
}

func (h *Hub) ack(c *client, id *int64, reply interface{}) {
	if id == nil {
		return
	}
	msg, err := encode(EventAck, reply, id)
	if err != nil {
		h.logger.Error(fmt.Sprintf("Encoding ack: %v", err))
		return
	}
	if !c.enqueue(msg) {
		h.logger.Warning(fmt.Sprintf("Send buffer full for %s, dropping ack", c.id))
	}
}
