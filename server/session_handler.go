package server

import (
	"net/http"

	"kwadrop/apperr"
	"kwadrop/core/session"
	"kwadrop/logger"
)

// CreateSessionHandler initializes a session if the caller has none and sets
// the session cookie.
func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if data, err := sessionData(r); err == nil && data != nil {
		writeError(w, apperr.Conflict("session already exists"))
		return
	}

	data := &session.Data{SessionID: session.NewSessionID()}
	if err := h.sessions.Create(r.Context(), data); err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	token, err := session.SignToken(h.cfg.SessionSecret, data.SessionID, h.cfg.SessionTTL)
	if err != nil {
		writeError(w, apperr.Wrap(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Debug("session created", logger.String("sessionId", data.SessionID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "created session"})
}
