package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/turnsync/internal/freestyle"
	"github.com/park285/turnsync/internal/lobby"
	"github.com/park285/turnsync/internal/match"
	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/pkg/syncdto"
)

type classified struct {
	code      string
	status    int
	retryable bool
}

var errBadRequest = errors.New("bad request")

func classify(err error) classified {
	switch {
	case errors.Is(err, match.ErrStaleTurn):
		return classified{syncdto.CodeStaleTurn, http.StatusConflict, true}
	case errors.Is(err, match.ErrNotYourTurn):
		return classified{syncdto.CodeNotYourTurn, http.StatusForbidden, true}
	case errors.Is(err, match.ErrIllegalMove):
		return classified{syncdto.CodeIllegalMove, http.StatusBadRequest, false}
	case errors.Is(err, freestyle.ErrFlagInvalid):
		return classified{syncdto.CodeFlagInvalid, http.StatusBadRequest, false}
	case errors.Is(err, freestyle.ErrWrongRoleCounts):
		return classified{syncdto.CodeWrongRoleCounts, http.StatusBadRequest, false}
	case errors.Is(err, freestyle.ErrInvalidPayload):
		return classified{syncdto.CodeInvalidPayload, http.StatusBadRequest, false}
	case errors.Is(err, match.ErrSessionNotFound), errors.Is(err, lobby.ErrSessionNotFound):
		return classified{syncdto.CodeSessionNotFound, http.StatusNotFound, false}
	case errors.Is(err, lobby.ErrLobbyNotFound):
		return classified{syncdto.CodeLobbyNotFound, http.StatusNotFound, false}
	case errors.Is(err, lobby.ErrLobbyFull):
		return classified{syncdto.CodeLobbyFull, http.StatusConflict, false}
	case errors.Is(err, lobby.ErrNotInLobby), errors.Is(err, match.ErrNotAPlayer):
		return classified{syncdto.CodeNotInLobby, http.StatusForbidden, false}
	case errors.Is(err, match.ErrSessionNotActive):
		return classified{syncdto.CodeSessionNotActive, http.StatusConflict, false}
	case errors.Is(err, lobby.ErrWrongPhase):
		return classified{syncdto.CodeWrongPhase, http.StatusConflict, false}
	case errors.Is(err, lobby.ErrBusy):
		return classified{syncdto.CodeBusy, http.StatusConflict, true}
	case errors.Is(err, lobby.ErrInvalidArgs), errors.Is(err, errBadRequest):
		return classified{syncdto.CodeBadRequest, http.StatusBadRequest, false}
	default:
		return classified{syncdto.CodeInternal, http.StatusInternalServerError, false}
	}
}

// writeError renders err as a DomainError. turn is the turn index the
// client sent, when there was one.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, turn int) {
	c := classify(err)
	data := map[string]any{"Turn": turn, "Reason": reason(err)}
	msg := s.catalog.Notice(c.code, data, err.Error())
	if c.status >= 500 {
		obslog.L().Error("http_error", zap.String("path", r.URL.Path), zap.Error(err))
		msg = s.catalog.Notice(c.code, data, "internal error")
	} else {
		obslog.L().Debug("http_reject", zap.String("path", r.URL.Path), zap.String("code", c.code), zap.Error(err))
	}
	writeJSON(w, c.status, syncdto.DomainError{Code: c.code, Message: msg, Retryable: c.retryable})
}

// reason strips the leading "illegal move: " prefixes the engine and the
// controller both add.
func reason(err error) string {
	msg := err.Error()
	prefix := match.ErrIllegalMove.Error() + ": "
	for strings.HasPrefix(msg, prefix) {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
