package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/turnsync/internal/freestyle"
	"github.com/park285/turnsync/internal/match"
	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/internal/rules"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/pkg/syncdto"
)

const maxBody = 64 << 10

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Client().Ping(r.Context()).Err(); err != nil {
		obslog.L().Warn("healthz_redis_error", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) CreateLobby(w http.ResponseWriter, r *http.Request) {
	var req syncdto.CreateLobbyRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	gt, err := rules.ParseGameType(req.GameType)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), 0)
		return
	}
	lb, err := s.lobby.CreateLobby(r.Context(), req.Name, gt)
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, lb)
}

func (s *Server) ListLobbies(w http.ResponseWriter, r *http.Request) {
	lbs, err := s.lobby.ListLobbies(r.Context())
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	if lbs == nil {
		lbs = []*session.Lobby{}
	}
	writeJSON(w, http.StatusOK, lbs)
}

func (s *Server) GetLobby(w http.ResponseWriter, r *http.Request) {
	lb, err := s.lobby.GetLobby(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (s *Server) JoinLobby(w http.ResponseWriter, r *http.Request) {
	var req syncdto.PlayerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	team, lb, err := s.lobby.JoinLobby(r.Context(), chi.URLParam(r, "id"), req.PlayerID)
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	raw, _ := json.Marshal(lb)
	writeJSON(w, http.StatusOK, syncdto.JoinLobbyResponse{
		Team:   team,
		Lobby:  raw,
		Notice: s.catalog.LobbyNotice("joined", req.PlayerID, team),
	})
}

func (s *Server) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	var req syncdto.PlayerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	lb, err := s.lobby.LeaveLobby(r.Context(), chi.URLParam(r, "id"), req.PlayerID)
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	resp := syncdto.LeaveLobbyResponse{Notice: s.catalog.LobbyNotice("left", req.PlayerID, 0)}
	if lb != nil {
		resp.Lobby, _ = json.Marshal(lb)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession returns the session as the seated player in ?player= may see it.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			err = match.ErrSessionNotFound
		}
		s.writeError(w, r, err, 0)
		return
	}
	viewer := r.URL.Query().Get("player")
	if !sess.HasPlayer(viewer) {
		s.writeError(w, r, match.ErrNotAPlayer, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess.View(viewer))
}

func (s *Server) ConfirmSetup(w http.ResponseWriter, r *http.Request) {
	var req syncdto.SetupRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	var setup freestyle.Setup
	if len(req.Setup) == 0 || json.Unmarshal(req.Setup, &setup) != nil {
		s.writeError(w, r, freestyle.ErrInvalidPayload, 0)
		return
	}
	ready, _, err := s.lobby.ConfirmSetup(r.Context(), chi.URLParam(r, "id"), req.PlayerID, setup)
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, syncdto.SetupResponse{OK: true, AllReady: ready})
}

func (s *Server) SubmitMove(w http.ResponseWriter, r *http.Request) {
	var req syncdto.MoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	var mv rules.Move
	if len(req.Move) == 0 || json.Unmarshal(req.Move, &mv) != nil {
		s.writeError(w, r, fmt.Errorf("%w: move payload", match.ErrIllegalMove), req.TurnIndex)
		return
	}
	next, err := s.match.SubmitMove(r.Context(), chi.URLParam(r, "id"), req.PlayerID, req.TurnIndex, mv)
	if err != nil {
		s.writeError(w, r, err, req.TurnIndex)
		return
	}
	raw, _ := json.Marshal(next.View(req.PlayerID))
	writeJSON(w, http.StatusOK, syncdto.MoveResponse{OK: true, Session: raw})
}

func (s *Server) Resign(w http.ResponseWriter, r *http.Request) {
	var req syncdto.PlayerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	next, err := s.match.Resign(r.Context(), chi.URLParam(r, "id"), req.PlayerID)
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	raw, _ := json.Marshal(next.View(req.PlayerID))
	writeJSON(w, http.StatusOK, syncdto.MoveResponse{OK: true, Session: raw})
}

// Sweep runs one sweep pass. It lets an external scheduler drive deadlines
// when the in-process loop is disabled.
func (s *Server) Sweep(w http.ResponseWriter, r *http.Request) {
	rep, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, r, err, 0)
		return
	}
	if rep.Turns == nil {
		rep.Turns = []string{}
	}
	if rep.Setups == nil {
		rep.Setups = []string{}
	}
	writeJSON(w, http.StatusOK, rep)
}
