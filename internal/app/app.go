// Package app wires configuration, storage and HTTP routes into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/auth"
	"github.com/distr-app/distr/internal/blob"
	"github.com/distr-app/distr/internal/builds"
	"github.com/distr-app/distr/internal/config"
	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/http/api/front"
	v1 "github.com/distr-app/distr/internal/http/api/v1"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/logging"
	"github.com/distr-app/distr/internal/myteam"
	"github.com/distr-app/distr/internal/notify"
	"github.com/distr-app/distr/internal/ratelimit"
	"github.com/distr-app/distr/internal/redisconn"
	"github.com/distr-app/distr/internal/store"
	"github.com/distr-app/distr/internal/uploadlock"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Server is the assembled HTTP handler and the background workers it owns.
type Server struct {
	Engine *gin.Engine

	listener *myteam.Listener
	notifier *notify.Notifier
	redis    *redisconn.Conn
}

// NewServer builds the routes and collaborators from cfg. A bot listener, when
// enabled, runs until ctx is done.
func NewServer(ctx context.Context, cfg config.Config, conn *gorm.DB) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("jwt secret is required (set `jwt.secret` or JWT_SECRET)")
	}

	redis := redisconn.New(cfg.Redis, "distr", nil, nil)

	users := store.NewUserStore(conn)
	projects := store.NewProjectStore(conn)
	grants := store.NewGrantStore(conn)
	branches := store.NewBranchStore(conn)
	accessGate := gate.New(projects, grants)

	var (
		sender   auth.Sender = myteam.NoopSender{}
		listener *myteam.Listener
	)
	if cfg.MyTeam.Enabled {
		client := myteam.NewClient(cfg.MyTeam, &http.Client{})
		sender = client
		listener = myteam.NewListener(client, store.NewCursorStore(conn),
			myteam.NewStartHandler(users, client),
			myteam.NewPingHandler(client),
		)
		listener.Start(ctx)
	} else {
		log.Warn("myteam bot disabled: one-time codes cannot be delivered")
	}

	notifier := notify.New(sender)
	legacyProject := ""
	if cfg.Storage.LegacyLayout {
		legacyProject = cfg.Storage.LegacyProject
	}
	pipeline := builds.New(accessGate, branches,
		blob.NewLocal(cfg.Storage.Dir, cfg.Storage.LegacyLayout),
		uploadlock.NewManager(redis),
		builds.WithNotifier(notifier),
		builds.WithMaxBytes(cfg.Upload.MaxBytes),
		builds.WithLegacyProject(legacyProject),
	)
	authService := auth.NewService(users, store.NewCodeStore(conn), store.NewTokenStore(conn), sender,
		ratelimit.NewManager(redis, nil), auth.Options{
			JWT:            cfg.JWT,
			CodesPerMinute: cfg.RateLimit.CodesPerMinute,
		})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())

	front.RegisterFrontRoutes(engine, conn, pipeline, cfg.Domain, legacyProject)
	if errRoutes := v1.RegisterRoutes(engine, v1.Deps{
		Auth:          authService,
		Gate:          accessGate,
		Users:         users,
		Projects:      projects,
		Grants:        grants,
		Branches:      branches,
		Pipeline:      pipeline,
		SessionTTL:    cfg.JWT.Expiry,
		SecureCookies: strings.TrimSpace(cfg.Domain) != "",
	}); errRoutes != nil {
		return nil, errRoutes
	}

	return &Server{Engine: engine, listener: listener, notifier: notifier, redis: redis}, nil
}

// Close waits for background work and releases the Redis client. The context
// passed to NewServer must be done first.
func (s *Server) Close() {
	s.listener.Wait()
	s.notifier.Wait()
	if errClose := s.redis.Close(); errClose != nil {
		log.WithError(errClose).Warn("redis close error")
	}
}

// RunServer loads the config file, migrates the database and serves until ctx is done.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, errLogging := logging.Setup(cfg.Logging)
	if errLogging != nil {
		return errLogging
	}
	defer func() {
		if errClose := logCloser.Close(); errClose != nil {
			log.Errorf("log file close error: %v", errClose)
		}
	}()

	if info, errDescribe := describeDSN(cfg.DSN()); errDescribe == nil {
		log.Infof("database: %s", info)
	}
	conn, err := db.Open(cfg.DSN())
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if hasUsers, errUsers := HasUsers(conn); errUsers == nil && !hasUsers {
		log.Info("no users yet: sign up through the API or press start in the myteam bot")
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	server, errServer := NewServer(serverCtx, cfg, conn)
	if errServer != nil {
		return errServer
	}
	defer func() {
		cancel()
		server.Close()
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Engine,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		<-serverCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting distr server on %s (storage %s)", srv.Addr, cfg.Storage.Dir)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", errListen)
	}
	return nil
}

func closeDB(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
