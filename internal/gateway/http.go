package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ssantosv/zapbridge/internal/supervisor"
	"go.uber.org/zap"
)

// Routes installs the websocket endpoint and the HTTP surface on mux.
func (g *Gateway) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("/status", g.handleStatus)
	mux.HandleFunc("/send-message", g.handleSendMessage)
	mux.HandleFunc("/chats", g.handleChats)
	mux.HandleFunc("/messages", g.handleMessages)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, g.statusPayload(g.sup.Status()))
}

func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var p SendMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.ChatID == "" || p.Message == "" {
		writeError(w, http.StatusBadRequest, "chatId and message are required")
		return
	}

	msg, err := g.sup.SendMessage(r.Context(), p.ChatID, p.Message)
	if err != nil {
		if errors.Is(err, supervisor.ErrNotConnected) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		g.logger.Error("send over http failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, SendResultPayload{Success: true, MessageID: msg.ID})
}

func (g *Gateway) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chats, err := g.sup.ListChats(r.Context())
	if err != nil {
		if errors.Is(err, supervisor.ErrNotConnected) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		g.logger.Error("chat listing over http failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch chats")
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chatId is required")
		return
	}

	msgs, err := g.sup.ListMessages(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, supervisor.ErrNotConnected) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		g.logger.Error("message listing over http failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
