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
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	api "go.pilab.hu/authbridge/api/echo"
	"go.pilab.hu/authbridge/cache"
	rediscache "go.pilab.hu/authbridge/cache/redis"
	"go.pilab.hu/authbridge/config"
	"go.pilab.hu/authbridge/domain"
	"go.pilab.hu/authbridge/idp"
	"go.pilab.hu/authbridge/mongodb"
	"go.pilab.hu/authbridge/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if parseErr != nil {
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("invalid LOG_LEVEL, defaulting to info")
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("idp_provider", cfg.IdPProvider).
		Str("mongo_db_name", cfg.MongoDBName).
		Msg("starting authbridge server")

	ctx := context.Background()

	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize MongoDB")
	}
	defer mongodb.Disconnect(context.Background(), db)

	profiles := mongodb.NewAccountRepository(ctx, db)

	var provider domain.IdentityProvider
	switch cfg.IdPProvider {
	case "memory":
		log.Warn().Msg("using in-memory identity provider; identities do not survive restarts")
		provider = idp.NewMemoryProvider(time.Hour)
	default:
		provider = idp.NewClient(cfg.IdPBaseURL, cfg.IdPServiceKey)
	}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to ping Redis")
		}
	}
	verified := verificationStore(cfg, redisClient)
	if verified == nil {
		log.Info().Msg("token verification cache disabled, every token is verified at the provider")
	}

	accountAPI := api.NewAccountAPI(
		services.NewSignupSaga(provider, profiles),
		services.NewLoginOrchestrator(provider, profiles),
		services.NewSessionRefresher(provider, profiles),
		services.NewIdentityResolver(provider, profiles, verified),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	accountAPI.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// verificationStore picks the token verification cache backend. A
// non-positive VERIFY_CACHE_TTL_SEC disables caching entirely: the
// resolver treats a nil store as verify-always.
func verificationStore(cfg *config.ServerConfig, redisClient *goredis.Client) cache.VerificationStore {
	if cfg.VerifyCacheTTLSec <= 0 {
		return nil
	}
	ttl := time.Duration(cfg.VerifyCacheTTLSec) * time.Second
	if redisClient != nil {
		return rediscache.NewStore(redisClient, "authbridge", ttl)
	}
	return cache.NewMemoryStore(ttl)
}
