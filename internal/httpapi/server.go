package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MimeLyc/subtitle-editor/internal/auth"
	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/jobs"
	"github.com/MimeLyc/subtitle-editor/internal/translation"
)

// PluginPrefix is the path the host platform mounts plugin routers under.
const PluginPrefix = "/plugins/subtitle-translator/router"

type translationService interface {
	RequestTranslation(ctx context.Context, videoID, originalLanguage, targetLanguage, captions string) (translation.RequestResult, error)
	CheckStatus(ctx context.Context, videoID string) (translation.StatusResult, error)
	Invalidate(ctx context.Context, videoID string) error
	Consume(ctx context.Context, videoID string) (bool, error)
	AvailablePairs(ctx context.Context) ([]translation.LanguagePair, error)
	Jobs() []*jobs.Job
	Job(id string) (*jobs.Job, bool)
}

type lockService interface {
	Get(ctx context.Context, videoID string) (editlock.Lock, error)
	Heartbeat(ctx context.Context, videoID string, locked bool) (editlock.Lock, error)
}

type videoAuthorizer interface {
	CanEditVideo(ctx context.Context, claims *auth.Claims, videoID string) (bool, error)
}

// directoryWriter receives ownership updates pushed by the host platform.
type directoryWriter interface {
	UpsertUser(ctx context.Context, userID, accountID int64) error
	UpsertChannel(ctx context.Context, channelID, accountID int64) error
	UpsertVideo(ctx context.Context, videoID string, channelID int64) error
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type Server struct {
	translations translationService
	locks        lockService
	authorizer   videoAuthorizer
	jwt          *auth.JWTService

	settings    runtimeSettingsStore
	directory   directoryWriter
	hookToken   string
	corsOrigins []string

	router chi.Router
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

// WithHooks enables the host webhooks, authenticated by the shared token.
func WithHooks(token string, directory directoryWriter) Option {
	return func(s *Server) {
		s.hookToken = token
		s.directory = directory
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func NewServer(translations translationService, locks lockService, authorizer videoAuthorizer, jwtService *auth.JWTService, opts ...Option) *Server {
	s := &Server{
		translations: translations,
		locks:        locks,
		authorizer:   authorizer,
		jwt:          jwtService,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.corsOrigins)))

	r.Get("/healthz", s.handleHealth)
	r.Route(PluginPrefix, s.mount)
	r.Group(s.mount)

	s.router = r
}

func (s *Server) mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.requireHookToken)
		r.Post("/hooks/caption-created", s.handleCaptionCreated)
		r.Post("/hooks/directory", s.handleDirectorySync)
	})

	r.Group(func(r chi.Router) {
		// a malformed id is answered before identity is looked at
		r.Use(requireVideoID)
		r.Use(auth.Middleware(s.jwt))
		r.Use(s.requireVideoAccess)

		r.Get("/lock", s.handleGetLock)
		r.Put("/lock", s.handlePutLock)
		r.Post("/translate", s.handleTranslate)
		r.Get("/check-caption-data", s.handleCheckStatus)
		r.Get("/check-translation", s.handleCheckStatus)
		r.Post("/consume-caption-data", s.handleConsume)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.jwt))
		r.Get("/available-pairs", s.handleAvailablePairs)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
		})
	})
}
