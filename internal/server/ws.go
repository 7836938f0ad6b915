package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/httputil"
	"github.com/sagalabs/saga/internal/logging"
	"github.com/sagalabs/saga/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isLocalhostOrigin(origin)
	},
}

// wsFrame is the wire format in both directions. Clients send chat_send;
// the server answers with chat_stream chunks, chat_notice warnings, and a
// terminal chat_complete or error frame per prompt.
type wsFrame struct {
	Type    string     `json:"type"`
	Text    string     `json:"text,omitempty"`
	Kind    string     `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
	State   chat.State `json:"state,omitempty"`
	Turns   int        `json:"turns,omitempty"`
}

// handleWS upgrades the connection and relays prompts for one
// conversation. Frames are written only from this goroutine: chunk and
// notice hooks fire synchronously inside Send.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	if _, err := s.hub.Store().GetConversation(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debugf("websocket read: %v", err)
			}
			return
		}
		if frame.Type != "chat_send" {
			conn.WriteJSON(wsFrame{Type: "error", Message: "unknown frame type " + frame.Type})
			continue
		}
		s.relayPrompt(r, conn, id, frame.Text)
	}
}

func (s *Server) relayPrompt(r *http.Request, conn *websocket.Conn, id, text string) {
	onChunk := func(chunk string) {
		conn.WriteJSON(wsFrame{Type: "chat_stream", Text: chunk})
	}
	onNotice := func(n chat.Notice) {
		conn.WriteJSON(wsFrame{Type: "chat_notice", Kind: string(n.Kind), Message: n.Message})
	}

	reply, err := s.hub.Send(r.Context(), id, text, onChunk, onNotice)
	if err != nil {
		kind := string(ai.KindOf(err))
		if err == store.ErrNotFound {
			kind = "not_found"
		}
		conn.WriteJSON(wsFrame{Type: "error", Kind: kind, Message: err.Error()})
		return
	}

	conv, err := s.hub.Conversation(r.Context(), id)
	if err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Message: err.Error()})
		return
	}
	conn.WriteJSON(wsFrame{
		Type:  "chat_complete",
		Text:  reply,
		State: conv.State(),
		Turns: conv.TurnCount(),
	})
}
