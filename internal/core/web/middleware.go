package web

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core/auth"
)

func (ws *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			// Hijacked connections never write a status.
			status = http.StatusSwitchingProtocols
		}
		ws.metrics.observe(r.Method, status)
		ws.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// authenticate resolves the request's token to a user.
func (ws *Server) authenticate(r *http.Request) (auth.User, error) {
	if ws.auth == nil {
		return auth.User{}, auth.ErrUnauthenticated
	}
	return ws.auth.Authenticate(r.Context(), auth.TokenFromRequest(r))
}

// requireUser rejects API requests without a valid token.
func (ws *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := ws.authenticate(r)
		if err != nil {
			ws.logger.Debug("api authentication failed", zap.Error(err))
			writeError(w, http.StatusUnauthorized, auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
	})
}

// optionalUser attaches the user when the request carries a valid token.
func (ws *Server) optionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := ws.authenticate(r)
		if err == nil {
			r = r.WithContext(auth.WithUser(r.Context(), u))
		} else if !errors.Is(err, auth.ErrUnauthenticated) {
			ws.logger.Warn("page authentication failed", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

func (ws *Server) requirePageUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFrom(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts non-browser clients, same-host pages and the
// configured CORS origins, which may contain * wildcards.
func (ws *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"); host == r.Host {
		return true
	}
	for _, pattern := range ws.origins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if ok, _ := path.Match(pattern, origin); ok {
			return true
		}
	}
	return false
}
