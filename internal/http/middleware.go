package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/amarnathnag/fitnect-cart/internal/session"
)

// SessionMiddleware builds the shopper session for the request. The
// fronting auth service validates credentials and forwards the user id
// in X-User-ID; anonymous visitors get (or keep) a guest id, echoed back
// so the client can persist it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.Session{
			UserID:  r.Header.Get("X-User-ID"),
			GuestID: r.Header.Get("X-Guest-ID"),
		}

		if !sess.Authenticated() && sess.GuestID == "" {
			sess.GuestID = uuid.NewString()
		}
		if sess.GuestID != "" {
			w.Header().Set("X-Guest-ID", sess.GuestID)
		}

		ctx := context.WithValue(r.Context(), "session", sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) session.Session {
	if sess, ok := ctx.Value("session").(session.Session); ok {
		return sess
	}
	return session.Session{}
}
