package handle

import (
	"context"
	"errors"
	"net/http"

	"alpd/api/internal/plate"
	"alpd/api/internal/session"
)

type AnalyzeError struct {
	Error string       `json:"error"`
	View  session.View `json:"view"`
}

// Analyze runs one recognition of the session's current image. The call is detached
// from the client connection so a dropped request never cancels it mid-flight.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	sess := h.sessionFor(w, r)

	ctx := context.WithoutCancel(r.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	_, err := sess.Analyze(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sess.View())
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoImage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusBadGateway, AnalyzeError{Error: plate.UserMessage(err), View: sess.View()})
	}
}

func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	sess := h.sessionFor(w, r)
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.View())
}
