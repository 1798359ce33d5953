package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	hooks "github.com/fedgraph/gateway/internal/hooks"
)

var wsUpgrader = websocket.Upgrader{
	Subprotocols: []string{"graphql-transport-ws"},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

// wsMessage is one frame of the graphql-transport-ws subprotocol (§6):
// ConnectionInit/Ack, Subscribe, Next, Error, Complete, Ping/Pong.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// serveWebSocket upgrades the connection and runs the graphql-transport-ws
// state machine: connection_init must precede any subscribe, after which
// each subscribe id gets its own next/complete (or error) sequence, one
// next per item executor.Executor.ExecuteSubscription emits (see
// subscription.go's doc comment).
func (h *Handler) serveWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	headers := r.Header.Clone()
	if h.opt.RequestHook != nil {
		if hh, err := h.opt.RequestHook.OnRequest(ctx, headers); err == nil {
			headers = hh
		}
	}
	var token hooks.AuthToken
	if h.opt.Authenticator != nil {
		if t, err := h.opt.Authenticator.Authenticate(ctx, headers); err == nil {
			token = t
		}
	}

	acked := false
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "connection_init":
			acked = true
			_ = conn.WriteJSON(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = conn.WriteJSON(wsMessage{Type: "pong"})
		case "subscribe":
			if !acked {
				writeWSError(conn, msg.ID, "connection not initialized")
				return
			}
			h.handleSubscribe(ctx, conn, msg, headers, token)
		case "complete":
			return
		}
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, conn *websocket.Conn, msg wsMessage, headers http.Header, token hooks.AuthToken) {
	var req GraphQLRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		writeWSError(conn, msg.ID, "invalid subscribe payload")
		return
	}

	op, plan, opType, err := h.plan(req)
	if err != nil {
		writeWSError(conn, msg.ID, err.Error())
		return
	}

	h.runPlannedStream(ctx, req, op, plan, opType, headers, token, func(result specResult) {
		payload, err := json.Marshal(result)
		if err != nil {
			writeWSError(conn, msg.ID, "failed to encode result")
			return
		}
		_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "next", Payload: payload})
	})
	_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "complete"})
}

func writeWSError(conn *websocket.Conn, id, message string) {
	payload, _ := json.Marshal([]map[string]any{{"message": message}})
	_ = conn.WriteJSON(wsMessage{ID: id, Type: "error", Payload: payload})
}
