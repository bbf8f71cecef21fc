package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fjod/go_marketplace/internal/auth"
	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalResolver loads the current role of a token holder.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID int64) (domain.Principal, error)
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func principalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// AuthMiddleware authenticates "Authorization: Bearer <token>" headers. Requests
// without the header pass through anonymously; a bad token is rejected.
func AuthMiddleware(tokens auth.TokenMaker, resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			fields := strings.Fields(header)
			if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
				return
			}

			payload, err := tokens.VerifyToken(fields[1])
			if err != nil {
				handleError(w, r, err)
				return
			}

			p, err := resolver.ResolvePrincipal(r.Context(), payload.UserID)
			if errors.Is(err, repository.ErrUserNotFound) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
				return
			}
			if err != nil {
				handleError(w, r, err)
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("user_id", p.UserID)
			})
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principalFrom(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware echoes chi's request id back to the client.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// LoggerMiddleware attaches a request-scoped logger to the context, logs every
// completed request and turns panics into a 500.
func LoggerMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger().
				WithContext(r.Context()))
			// auth adds fields to this logger in place
			reqLog := zerolog.Ctx(r.Context())
			recorder := &StatusRecorder{ResponseWriter: w}

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					reqLog.Error().
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Str("error", fmt.Sprint(rec)).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")
					if recorder.status == 0 {
						respondError(recorder, http.StatusInternalServerError, "internal_error", "internal server error")
					}
				}

				evt := reqLog.Info()
				if recorder.Status() >= http.StatusInternalServerError {
					evt = reqLog.Error()
				}
				evt.Str("method", r.Method).
					Str("url", r.URL.String()).
					Int("status", recorder.Status()).
					Dur("duration", time.Since(start)).
					Msg("request completed")
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}
