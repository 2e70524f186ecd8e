package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/auth"
	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/httpapi"
	"github.com/MimeLyc/subtitle-editor/internal/jobs"
	"github.com/MimeLyc/subtitle-editor/internal/notify"
	"github.com/MimeLyc/subtitle-editor/internal/persistence"
	"github.com/MimeLyc/subtitle-editor/internal/translation"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	Addr string `arg:"--addr" help:"listen address, overrides HTTP_ADDR"`
}

type tokenCmd struct {
	UserID   int64         `arg:"--user,required" help:"host user id"`
	Username string        `arg:"--name" help:"display name"`
	Role     string        `arg:"--role" default:"user" help:"user, moderator or admin"`
	TTL      time.Duration `arg:"--ttl" default:"24h" help:"token lifetime"`
}

type args struct {
	EnvFile string    `arg:"--env-file,env:ENV_FILE" default:".env" help:"dotenv file loaded before reading the environment"`
	Serve   *serveCmd `arg:"subcommand:serve" help:"run the HTTP server (default)"`
	Token   *tokenCmd `arg:"subcommand:token" help:"print a bearer token for a user"`
	Watch   *watchCmd `arg:"subcommand:watch" help:"follow the translation of one video and store the result"`
}

func (args) Description() string {
	return "subtitle-editor serves caption edit locks and machine translation jobs"
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := godotenv.Load(a.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to load %s: %v", a.EnvFile, err)
	}
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case a.Token != nil:
		err = issueToken(a.Token)
	case a.Watch != nil:
		err = watch(ctx, a.Watch)
	default:
		addr := ""
		if a.Serve != nil {
			addr = a.Serve.Addr
		}
		err = serve(ctx, addr)
	}
	if err != nil {
		stop()
		log.Fatal("%v", err)
	}
}

func issueToken(cmd *tokenCmd) error {
	switch cmd.Role {
	case auth.RoleUser, auth.RoleModerator, auth.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", cmd.Role)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, cmd.TTL)
	if err != nil {
		return err
	}
	token, err := jwtService.GenerateToken(cmd.UserID, cmd.Username, cmd.Role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type app struct {
	store     *persistence.SQLStore
	publisher notify.Publisher
	manager   *translation.Manager
	server    *httpapi.Server
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		log.Warn("Failed to close event publisher: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Warn("Failed to close store: %v", err)
	}
}

func serve(ctx context.Context, addr string) error {
	cfg, err := config.NewFromEnv(config.WithAddr(addr))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.GetLogger().SetLevel(log.ParseLevel(cfg.System.LogLevel))

	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("Listening on %s", cfg.HTTP.Addr)
	return runWithComponents(ctx, cfg.HTTP.Addr, a.manager, a.server)
}

func build(cfg *config.Config) (*app, error) {
	store, err := persistence.NewSQLStore(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	settings, err := config.OpenRuntimeSettingsStore(cfg.System.SettingsFile, cfg.InitialRuntimeSettings())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open runtime settings: %w", err)
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.Events.AMQPURL != "" {
		rabbit, err := notify.NewRabbitMQPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = rabbit
	}

	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, 0)
	if err != nil {
		_ = publisher.Close()
		_ = store.Close()
		return nil, err
	}

	manager := translation.NewManager(
		store,
		translation.NewHTTPClient(),
		jobs.NewQueue(cfg.Translation.WorkerCount),
		settings,
		translation.WithPublisher(publisher),
	)
	server := httpapi.NewServer(
		manager,
		editlock.NewManager(store, time.Now),
		auth.NewAuthorizer(store),
		jwtService,
		httpapi.WithRuntimeSettingsStore(settings),
		httpapi.WithHooks(cfg.Auth.HookToken, store),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
	)

	return &app{store: store, publisher: publisher, manager: manager, server: server}, nil
}

type worker interface {
	Start()
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// runWithComponents starts the background workers and the HTTP server and
// blocks until ctx is cancelled or the server fails.
func runWithComponents(ctx context.Context, addr string, workers worker, httpSrv httpServer) error {
	workers.Start()
	defer workers.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
