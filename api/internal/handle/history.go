package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"alpd/api/internal/session"
)

func (h *Handle) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionFor(w, r).View())
}

func (h *Handle) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionFor(w, r).History())
}

// SelectHistory makes ?id= the current image and result again.
func (h *Handle) SelectHistory(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	sess := h.sessionFor(w, r)
	if _, err := sess.LoadFromHistory(id); err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, session.ErrBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// Recognitions lists the persisted recognition log, newest first.
func (h *Handle) Recognitions(w http.ResponseWriter, r *http.Request) {
	if h.recognitions == nil {
		writeError(w, http.StatusNotFound, "recognition log disabled")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = v
	}
	rows, err := h.recognitions.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recognitions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
