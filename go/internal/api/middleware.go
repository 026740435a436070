package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/tablematch/go/internal/session"
	"github.com/rs/zerolog/log"
)

// RequireTeam rejects requests without a valid session and stores the team in the context.
func (h *Handler) RequireTeam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team, err := h.sessions.TeamFromRequest(r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected session")
			writeMessage(w, http.StatusUnauthorized, "Your session has expired, please log in again")
			return
		}
		if team == "" {
			writeMessage(w, http.StatusUnauthorized, "Please log in")
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithTeam(r.Context(), team)))
	})
}

// RequestLogger logs every request with zerolog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
