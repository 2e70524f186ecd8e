package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/MimeLyc/subtitle-editor/internal/auth"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

type contextKey string

const videoIDKey contextKey = "video_id"

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// silentSuffixes are polled by every open editor and only logged on errors.
var silentSuffixes = []string{
	"/lock",
	"/check-caption-data",
	"/check-translation",
	"/healthz",
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 && isSilent(r.URL.Path) {
			log.Debug("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
			return
		}
		log.Info("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

func isSilent(path string) bool {
	for _, suffix := range silentSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// credentials are never combined with a wildcard origin
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// isCanonicalVideoID accepts lowercase hyphenated UUIDs only.
func isCanonicalVideoID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.String() == id
}

// requireVideoID answers malformed ids with a locked lock, which stops
// editors without revealing anything.
func requireVideoID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if !isCanonicalVideoID(id) {
			log.Warn("Possibly invalid video id %q on %s", id, r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{
				"locked":  true,
				"changed": "",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), videoIDKey, id)))
	})
}

func videoIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(videoIDKey).(string)
	return id
}

func (s *Server) requireVideoAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFrom(r.Context())
		ok, err := s.authorizer.CanEditVideo(r.Context(), claims, videoIDFrom(r))
		if err != nil {
			log.Error("Access check for video %s failed: %v", videoIDFrom(r), err)
			writeAppError(w, err)
			return
		}
		if !ok {
			log.Info("User cannot access video %s", videoIDFrom(r))
			auth.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireHookToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Hook-Token")
		if s.hookToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.hookToken)) != 1 {
			auth.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
