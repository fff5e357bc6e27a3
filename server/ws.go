package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// Inbound frame ceilings. Oversized frames are rejected with an error event;
// the channel itself stays open.
const (
	maxFrameBytes = 32 * 1024
	maxTextChars  = 4000
)

const (
	frameTypePing   = "ping"
	frameTypeSubmit = "submit_request"
)

type inboundFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Text     string `json:"text"`
}

// RequestHandler runs the engine pipeline for one validated envelope.
type RequestHandler interface {
	HandleRequest(ctx context.Context, envelope contractx.RequestEnvelope, sink contractx.EventSink) error
}

// wsChannel serializes writes to one websocket connection.
type wsChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsChannel) Send(event contractx.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(event)
}

// WSHandler upgrades connections and runs the receive loop. Pipeline runs
// are detached: the loop never blocks on in-flight work.
type WSHandler struct {
	hub      *Hub
	engine   RequestHandler
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, engine RequestHandler) *WSHandler {
	return &WSHandler{
		hub:    hub,
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := &wsChannel{conn: conn}
	h.hub.Register(ch)
	defer func() {
		h.hub.Unregister(ch)
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.handleFrame(ch, data)
	}
}

// handleFrame validates one raw frame and routes it. Every rejection sends a
// typed error event and leaves the channel registered.
func (h *WSHandler) handleFrame(ch Channel, data []byte) {
	if len(data) > maxFrameBytes {
		h.hub.SendTo(ch, contractx.ErrorEvent(
			fmt.Sprintf("Frame exceeds %d byte limit", maxFrameBytes)))
		return
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		h.hub.SendTo(ch, contractx.ErrorEvent("Frame is not valid JSON"))
		return
	}
	if _, ok := raw.(map[string]any); !ok {
		h.hub.SendTo(ch, contractx.ErrorEvent("Frame must be a JSON object"))
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.hub.SendTo(ch, contractx.ErrorEvent("Malformed frame"))
		return
	}

	switch frame.Type {
	case frameTypePing:
		h.hub.SendTo(ch, contractx.Event{Type: contractx.EventPong})
	case frameTypeSubmit:
		h.handleSubmit(ch, frame)
	default:
		h.hub.SendTo(ch, contractx.ErrorEvent(
			fmt.Sprintf("Unknown message type: %s", frame.Type)))
	}
}

func (h *WSHandler) handleSubmit(ch Channel, frame inboundFrame) {
	if strings.TrimSpace(frame.ClientID) == "" || strings.TrimSpace(frame.Text) == "" {
		h.hub.SendTo(ch, contractx.ErrorEvent("Missing client_id or text"))
		return
	}
	if utf8.RuneCountInString(frame.Text) > maxTextChars {
		h.hub.SendTo(ch, contractx.ErrorEvent(
			fmt.Sprintf("Text exceeds %d character limit", maxTextChars)))
		return
	}

	envelope := contractx.RequestEnvelope{
		ClientID: frame.ClientID,
		Text:     frame.Text,
	}
	sink := h.hub.SinkFor(ch)

	// Detached: a disconnected channel does not stop the backing work.
	go func() {
		if err := h.engine.HandleRequest(context.Background(), envelope, sink); err != nil {
			log.Debug().Err(err).Str("client_id", envelope.ClientID).Msg("request cycle ended with error")
		}
	}()
}
