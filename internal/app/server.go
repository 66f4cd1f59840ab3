// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ledroitcheck-service/internal/config"
	"ledroitcheck-service/internal/db"
	"ledroitcheck-service/internal/db/migrate"
	authHandler "ledroitcheck-service/internal/handlers/auth"
	ingresoHandler "ledroitcheck-service/internal/handlers/ingreso"
	jornadaHandler "ledroitcheck-service/internal/handlers/jornada"
	relayHandler "ledroitcheck-service/internal/handlers/relay"
	sessionHandler "ledroitcheck-service/internal/handlers/session"
	systemHandler "ledroitcheck-service/internal/handlers/system"
	wsHandler "ledroitcheck-service/internal/handlers/websocket"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/events"
	"ledroitcheck-service/internal/pkg/jwt"
	"ledroitcheck-service/internal/pkg/metrics"
	"ledroitcheck-service/internal/pkg/session"
	"ledroitcheck-service/internal/repository/postgres"
	redisrepo "ledroitcheck-service/internal/repository/redis"
	"ledroitcheck-service/internal/service/audit"
	authUsecase "ledroitcheck-service/internal/service/auth"
	ingresoUsecase "ledroitcheck-service/internal/service/ingreso"
	jornadaUsecase "ledroitcheck-service/internal/service/jornada"
	"ledroitcheck-service/internal/service/lastlogin"
	relayUsecase "ledroitcheck-service/internal/service/relay"
	systemUsecase "ledroitcheck-service/internal/service/system"
	"ledroitcheck-service/internal/websocket"
	wsHandlers "ledroitcheck-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	mu       sync.Mutex
	http     *http.Server
	closers  []func()
	shutdown bool
}

func NewServer() *Server {
	cfg := config.Load()
	gin.SetMode(gin.ReleaseMode)
	return &Server{cfg: cfg, engine: gin.New()}
}

// Start wires every dependency and serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger
	s.onShutdown(func() { _ = logger.Sync() })

	// ----- PostgreSQL -----
	if s.cfg.AutoMigrate {
		if err := migrate.Run(s.cfg.DatabaseURL, "up"); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:      s.cfg.DatabaseURL,
		MaxConns: s.cfg.DBMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.onShutdown(pool.Close)
	logger.Info("postgres connected")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		ClusterMode: s.cfg.RedisCluster,
		Addresses:   s.cfg.RedisAddrs,
		Password:    s.cfg.RedisPass,
		DB:          s.cfg.RedisDB,
		PoolSize:    10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.onShutdown(func() { _ = redisClient.Close() })
	logger.Info("redis connected", zap.Strings("addrs", s.cfg.RedisAddrs))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Events -----
	m := metrics.New()
	bus := events.NewBus(logger)
	bridge := events.NewRedisBridge(redisClient, s.cfg.EventsChannel, bus, logger)
	stopBridge, err := bridge.Listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to listen for events: %w", err)
	}
	s.onShutdown(stopBridge)

	clearedSub := bus.Subscribe(session.EventCleared, "", func(e events.Event) {
		var data session.ClearedData
		if err := e.Decode(&data); err == nil {
			m.SessionCleared(data.Reason)
		}
	})
	s.onShutdown(clearedSub.Close)

	// ----- Sessions -----
	ephemeral := session.NewMemoryBackend()
	s.onShutdown(ephemeral.RunSweeper(time.Minute))
	sessionManager := session.NewManager(
		ephemeral,
		session.NewRedisBackend(redisClient),
		bridge,
		session.Config{
			TTL:           s.cfg.SessionTTL,
			IdleTimeout:   s.cfg.SessionIdleTimeout,
			ClearOnUnload: s.cfg.SessionClearOnUnload,
			LoginPath:     s.cfg.LoginPath,
		},
		logger,
	)
	s.onShutdown(sessionManager.Shutdown)
	s.onShutdown(sessionManager.Watch(bus).Close)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	loc := folioLocation(s.cfg.FolioTimezone, logger)
	jornadaRepo := postgres.NewJornadaRepository(dbWrapper, loc)
	lastLoginRepo := postgres.NewLastLoginRepository(dbWrapper)
	systemRepo := postgres.NewSystemRepository(dbWrapper)
	lastLoginCache := redisrepo.NewLastLoginCache(redisClient, s.cfg.LastLoginTTL)
	localSystems := redisrepo.NewSystemStore(redisClient)

	// ----- Services (Usecases) -----
	lastLoginService := lastlogin.NewService(lastLoginCache, lastLoginRepo, logger)
	auditClient := audit.NewClient(s.cfg.AuditURL, s.cfg.AuditTimeout, logger)
	systemService := systemUsecase.NewService(systemRepo, localSystems, logger)
	jornadaService := jornadaUsecase.NewService(jornadaRepo, bridge, bus, m, s.cfg.StoreTimeout, logger)
	masterClient := authUsecase.NewMasterClient(s.cfg.MasterAuthURL, s.cfg.SystemName, s.cfg.MasterTimeout, logger)
	ingresoService := ingresoUsecase.NewService(lastLoginService, auditClient, sessionManager, masterClient, m, logger)
	relayService := relayUsecase.NewService(sessionManager, lastLoginService, systemService, m, logger)
	authService := authUsecase.NewService(masterClient, lastLoginService, sessionManager, jwtManager.Generator, logger)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(jwtManager.Verifier, sessionManager, logger)
	hub.RegisterHandler(wsHandlers.NewJornadaHandler(jornadaService))
	hub.RegisterHandler(wsHandlers.NewSessionHandler(sessionManager))
	s.onShutdown(hub.Attach(bus))

	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)
	s.onShutdown(stopHub)

	// ----- Handlers -----
	cookie := middleware.CookieConfig{
		Name:   s.cfg.CookieName,
		TTL:    s.cfg.SessionTTL,
		Secure: s.cfg.CookieSecure,
	}
	limiter := middleware.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, 10*time.Minute)
	s.onShutdown(limiter.Stop)

	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService, cookie, logger),
		SessionHandler: sessionHandler.NewSessionHandler(sessionManager, authService, jwtManager.Generator, cookie, s.cfg.LoginPath, logger),
		IngresoHandler: ingresoHandler.NewIngresoHandler(ingresoService, jwtManager.Generator, cookie, s.cfg.IngresoRedirectPath, logger),
		RelayHandler:   relayHandler.NewRelayHandler(relayService, cookie, logger),
		SystemHandler:  systemHandler.NewSystemHandler(systemService),
		JornadaHandler: jornadaHandler.NewJornadaHandler(jornadaService),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, s.cfg.CookieName, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtManager.Verifier, sessionManager, s.cfg.CookieName),
		RateLimiter:    limiter,
		Metrics:        m,
		Health:         healthCheck(dbWrapper, redisClient),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.MetricsMiddleware(m),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.cfg.AllowedOrigins, handlers)

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		s.close()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and releases
// every resource acquired by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.close()
	return err
}

// ShutdownTimeout is the configured drain window.
func (s *Server) ShutdownTimeout() time.Duration {
	return s.cfg.ShutdownTimeout
}

func (s *Server) onShutdown(fn func()) {
	s.mu.Lock()
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// close runs the registered closers in reverse order, once.
func (s *Server) close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func folioLocation(name string, logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown folio timezone, using UTC", zap.String("tz", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthCheck(pg pinger, client redis.UniversalClient) func(ctx context.Context) map[string]string {
	return func(ctx context.Context) map[string]string {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := map[string]string{"postgres": "ok", "redis": "ok"}
		if err := pg.Ping(ctx); err != nil {
			status["postgres"] = "unavailable"
		}
		if err := client.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
		}
		return status
	}
}
