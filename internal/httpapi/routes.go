// Package httpapi exposes lobbies, sessions and the live snapshot socket
// over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/turnsync/internal/lobby"
	"github.com/park285/turnsync/internal/match"
	"github.com/park285/turnsync/internal/msgcat"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/internal/sweep"
)

type Server struct {
	store   *session.Store
	lobby   *lobby.Coordinator
	match   *match.Controller
	sweeper *sweep.Sweeper
	catalog *msgcat.Catalog
	ws      http.Handler
}

func NewServer(store *session.Store, lc *lobby.Coordinator, mc *match.Controller, sw *sweep.Sweeper, cat *msgcat.Catalog, ws http.Handler) *Server {
	return &Server{store: store, lobby: lc, match: mc, sweeper: sw, catalog: cat, ws: ws}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.Healthz)

	r.Route("/lobbies", func(r chi.Router) {
		r.Post("/", s.CreateLobby)
		r.Get("/", s.ListLobbies)
		r.Get("/{id}", s.GetLobby)
		r.Post("/{id}/join", s.JoinLobby)
		r.Post("/{id}/leave", s.LeaveLobby)
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Post("/setup", s.ConfirmSetup)
		r.Post("/moves", s.SubmitMove)
		r.Post("/resign", s.Resign)
	})

	r.Post("/internal/sweep", s.Sweep)
	if s.ws != nil {
		r.Get("/ws", s.ws.ServeHTTP)
	}
	return r
}
