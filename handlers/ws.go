package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"gifcompress/eventbus"
)

const wsWriteDeadline = 5 * time.Second
const wsPingInterval = 30 * time.Second
const wsPongWait = 2 * wsPingInterval

type wsOutMessage struct {
	Type string      `json:"type"`
	JobID string     `json:"jobId,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// WSUpgrade gates the /ws route to WebSocket upgrade requests only,
// mirroring the reference backend's upgrade-check middleware.
func WSUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WSHandler relays every event-bus message to one connected client until
// it disconnects or falls behind, and answers client PINGs with PONGs.
// Each connection gets its own event-bus subscriber and pump goroutine;
// a write that blocks past wsWriteDeadline unregisters the subscriber and
// closes the socket, matching the bus's "terminal event delivered or
// subscriber closed" guarantee.
func (h *Handlers) WSHandler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		logger := h.log
		sub := h.bus.Subscribe()
		defer h.bus.Unsubscribe(sub)

		done := make(chan struct{})

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		go h.pumpEvents(conn, sub, done, logger)

		if err := writeJSON(conn, wsOutMessage{Type: "CONNECTED"}); err != nil {
			close(done)
			return
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(done)
				return
			}
			conn.SetReadDeadline(time.Now().Add(wsPongWait))

			var incoming struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &incoming); err != nil {
				continue
			}
			if incoming.Type == "PING" {
				if err := writeJSON(conn, wsOutMessage{Type: "PONG"}); err != nil {
					close(done)
					return
				}
			}
		}
	}
}

// pumpEvents drains the subscriber's queue and writes each event to the
// socket. If a write or heartbeat ping fails (including one that exceeds
// the deadline), it closes the connection, which ends the read loop in
// WSHandler; that loop then closes done and unsubscribes.
func (h *Handlers) pumpEvents(conn *websocket.Conn, sub *eventbus.Subscriber, done chan struct{}, logger *slog.Logger) {
	heartbeat := time.NewTicker(wsPingInterval)
	defer heartbeat.Stop()

	events := make(chan eventbus.Event)
	go func() {
		for {
			event, ok := sub.Next()
			if !ok {
				close(events)
				return
			}
			select {
			case events <- event:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteDeadline)); err != nil {
				logger.Debug("websocket heartbeat failed, closing", slog.Any("error", err))
				conn.Close()
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(conn, toWSMessage(event)); err != nil {
				logger.Debug("websocket write failed, closing subscriber", slog.Any("error", err))
				conn.Close()
				return
			}
		}
	}
}

func toWSMessage(event eventbus.Event) wsOutMessage {
	switch event.Type {
	case "JOB_STATUS_UPDATE":
		return wsOutMessage{Type: event.Type, JobID: event.JobID, Data: event.JobStatus}
	default:
		return wsOutMessage{Type: event.Type, Data: event.QueueStatus}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return conn.WriteMessage(websocket.TextMessage, body)
}

