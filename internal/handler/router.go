package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/talkative/internal/handler/message"
	"github.com/zhouzirui/talkative/internal/handler/socket"
	"github.com/zhouzirui/talkative/internal/middleware"
	chatservice "github.com/zhouzirui/talkative/internal/service/chat"
	"github.com/zhouzirui/talkative/internal/service/hub"
)

// NewRouter wires HTTP routes to the history store and the channel.
func NewRouter(chatSvc *chatservice.Service, h *hub.Hub, verifier middleware.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	messageHandler := message.New(chatSvc)
	socketHandler := socket.New(h, chatSvc)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireToken(verifier))
		messageHandler.RegisterRoutes(authed)
		socketHandler.RegisterRoutes(authed)
	})

	return r
}
