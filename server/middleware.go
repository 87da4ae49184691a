package server

import (
	"context"
	"net/http"

	"kwadrop/apperr"
	"kwadrop/core/session"
	"kwadrop/logger"
	"kwadrop/model"
)

type contextKey string

const sessionContextKey contextKey = "sessionData"

// corsMiddleware sets the CORS headers and answers preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware resolves the session cookie into session data and
// attaches it to the request context. Requests without a valid session pass
// through with no data; handlers that need one use sessionData.
func (h *APIHandler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err == nil {
			sessionID, err := session.ParseToken(h.cfg.SessionSecret, cookie.Value)
			if err != nil {
				logger.Debug("rejected session cookie", logger.ErrorField(err))
			} else {
				data, err := h.sessions.Get(r.Context(), sessionID)
				if err != nil {
					logger.Warn("session lookup failed", logger.ErrorField(err))
				} else if data != nil {
					ctx := context.WithValue(r.Context(), sessionContextKey, data)
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sessionData returns the caller's session, or an error when none is
// attached.
func sessionData(r *http.Request) (*session.Data, error) {
	data, ok := r.Context().Value(sessionContextKey).(*session.Data)
	if !ok || data == nil {
		return nil, apperr.Forbidden("No valid session.")
	}
	return data, nil
}

// currentUser loads the user bound to the caller's session.
func (h *APIHandler) currentUser(r *http.Request) (*model.User, error) {
	data, err := sessionData(r)
	if err != nil {
		return nil, err
	}
	user, err := h.users.GetUserBySessionID(data.SessionID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if user == nil {
		return nil, apperr.NotFound("There is no user for this session")
	}
	return user, nil
}
