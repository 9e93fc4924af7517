package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	ssoapi "go.avinoo.ir/sso/api/echo"
	"go.avinoo.ir/sso/cache"
	cacheredis "go.avinoo.ir/sso/cache/redis"
	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/config"
	"go.avinoo.ir/sso/internal/audit"
	"go.avinoo.ir/sso/internal/auth"
	"go.avinoo.ir/sso/log"
	"go.avinoo.ir/sso/mongodb"
	"go.avinoo.ir/sso/oracle"
	"go.avinoo.ir/sso/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Setup(cfg.LogLevel, cfg.LogPretty)
	zlog.Info().Str("http_port", cfg.HTTPPort).Msg("starting avinoo SSO server")

	if cfg.BearerTokenSecret == "" || cfg.MeetJWTSecret == "" {
		zlog.Fatal().Msg("BEARER_TOKEN_SECRET and MEET_JWT_SECRET must be configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize user repository")
	}
	sessionRepo, err := mongodb.NewSessionRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize session repository")
	}
	auditRepo, err := mongodb.NewAuditLogRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize audit repository")
	}
	registry, err := mongodb.NewClientRegistry(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize client registry")
	}
	recorder := audit.NewRepositoryRecorder(auditRepo)

	// Bearer-token validation cache: Redis when configured, in-process
	// otherwise.
	var tokenStore cache.TokenStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		tokenStore = cacheredis.NewTokenStore(redisClient, "sso")
	} else {
		tokenStore = cache.NewMemoryTokenStore()
	}
	defer tokenStore.Close()

	// Signing keys: one for bearer tokens, one per assertion profile.
	signer := services.NewTokenSigner()
	signer.AddKey(services.SigningKeyBearer, cfg.BearerTokenSecret)
	signer.AddKey(string(client.ProfileMeeting), cfg.MeetJWTSecret)
	signer.AddKey(string(client.ProfileStandard), cfg.BearerTokenSecret)

	tokenService := services.NewTokenService(userRepo, tokenStore, signer, cfg.Issuer, cfg.AccessTokenTTL())
	sessionService := services.NewSessionService(sessionRepo)
	assertionService := services.NewAssertionService(signer, services.MeetingProfile{
		Group:         cfg.MeetGroup,
		DefaultRegion: cfg.MeetDefaultRegion,
		Features:      cfg.MeetFeatures(),
		Theme:         cfg.MeetTheme,
		AllowKnocking: cfg.MeetAllowKnocking,
		EnablePolls:   cfg.MeetEnablePolls,
	})
	oracleClient := oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout())
	hasher := auth.NewBcryptPasswordHasher(0)

	authService := services.NewAuthService(
		userRepo, registry, sessionService, tokenService, assertionService,
		oracleClient, hasher, recorder,
	)

	// Periodic expired-session sweep. Housekeeping only; expiry is enforced
	// at consume time.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(cfg.SessionSweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := sessionService.SweepExpired(sweepCtx); err != nil {
					zlog.Error().Err(err).Msg("session sweep failed")
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	ssoapi.NewSSOAPI(authService, cfg.MeetClientID).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("error during server shutdown")
	}
}
