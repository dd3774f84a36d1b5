package message

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/talkative/internal/middleware"
	chatservice "github.com/zhouzirui/talkative/internal/service/chat"
	"github.com/zhouzirui/talkative/pkg/utils"
)

// Handler exposes the history store over HTTP.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the message handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes wires the history store endpoints. All routes expect
// an authenticated request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/message/{chatID}", h.handleListMessages)
	r.Post("/message", h.handleSendMessage)
	r.Get("/chat", h.handleListChats)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	chatID := chi.URLParam(r, "chatID")

	c, err := h.chatSvc.GetChat(r.Context(), chatID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "chat not found")
		return
	}
	if !c.HasUser(userID) {
		utils.RespondError(w, http.StatusForbidden, "not a chat participant")
		return
	}

	messages, err := h.chatSvc.ListMessages(r.Context(), chatID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "chat not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var payload struct {
		Content string `json:"content"`
		ChatID  string `json:"chatId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.chatSvc.SaveMessage(r.Context(), payload.ChatID, userID, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, chatservice.ErrEmptyContent):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, chatservice.ErrChatNotFound):
			utils.RespondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, chatservice.ErrNotParticipant):
			utils.RespondError(w, http.StatusForbidden, err.Error())
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListChats(r.Context(), userID))
}
