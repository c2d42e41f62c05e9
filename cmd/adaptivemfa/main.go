package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/adaptivemfa/internal/adaptive"
	"github.com/dropDatabas3/adaptivemfa/internal/cache"
	"github.com/dropDatabas3/adaptivemfa/internal/config"
	httpserver "github.com/dropDatabas3/adaptivemfa/internal/http"
	"github.com/dropDatabas3/adaptivemfa/internal/introspect"
	"github.com/dropDatabas3/adaptivemfa/internal/metrics"
	"github.com/dropDatabas3/adaptivemfa/internal/observability/logger"
	"github.com/dropDatabas3/adaptivemfa/internal/rate"
	"github.com/dropDatabas3/adaptivemfa/internal/rest"
	"github.com/dropDatabas3/adaptivemfa/internal/security/secretbox"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
	"github.com/dropDatabas3/adaptivemfa/internal/transaction"
)

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string

	root := &cobra.Command{
		Use:   "adaptivemfa",
		Short: "Motor de autenticación multifactor adaptativa",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "ruta a config.yaml (env CONFIG_PATH)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP del flujo adaptativo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgPath)
		},
	}
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	// Redis es opcional: lo exige el store de transacciones distribuido,
	// el storage del token de servicio o el rate limiter compartido.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store transaction.Store
	switch cfg.Transaction.Store {
	case "redis":
		store = transaction.NewRedisStore(redisClient, cfg.TransactionTTL())
	default:
		store = transaction.NewMemoryStore(cfg.TransactionTTL())
	}

	orch, err := adaptive.New(adaptive.Config{
		TenantURL:    cfg.Provider.TenantURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
	}, store)
	if err != nil {
		return err
	}

	rc := rest.New(cfg.Provider.TenantURL)
	tokens := token.NewClient(rc, cfg.Provider.ClientID, cfg.Provider.ClientSecret, cfg.Provider.Scope)

	tokenStorage, err := buildTokenStorage(cfg, redisClient)
	if err != nil {
		return err
	}
	cacheOpts := []token.CacheOption{
		token.WithMargin(cfg.TokenMargin()),
		token.WithVerifyOnLoad(cfg.TokenCache.VerifyOnLoad),
		token.WithRefreshHook(func() { metrics.TokenRefreshes.Inc() }),
	}
	if tokenStorage != nil {
		cacheOpts = append(cacheOpts, token.WithStorage(tokenStorage))
	}
	tokenCache := token.NewCache(tokens, cacheOpts...)

	gate := introspect.New(tokens,
		cache.NewMemory(time.Minute, cfg.Introspect.CacheMaxSize),
		introspect.Config{
			TTL:              cfg.IntrospectTTL(),
			DenyMFAChallenge: *cfg.Introspect.DenyMFAChallenge,
		})

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if redisClient != nil {
			limiter = rate.NewRedisLimiter(redisClient, "rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
		}
	}

	srv := &httpserver.Server{
		Orchestrator: orch,
		Tokens:       tokens,
		Cache:        tokenCache,
	}
	handler, err := httpserver.NewRouter(srv, gate, limiter, nil)
	if err != nil {
		return err
	}

	log.Info("adaptivemfa arriba",
		logger.String("addr", cfg.Server.Addr),
		logger.String("transaction_store", cfg.Transaction.Store))
	return httpserver.Start(cfg.Server.Addr, handler)
}

// buildTokenStorage arma la persistencia del token de servicio según config.
func buildTokenStorage(cfg *config.Config, redisClient *redis.Client) (token.Storage, error) {
	switch cfg.TokenCache.Storage {
	case "file":
		var sealer *secretbox.Sealer
		if cfg.TokenCache.SealKey != "" {
			s, err := secretbox.New(cfg.TokenCache.SealKey)
			if err != nil {
				return nil, err
			}
			sealer = s
		}
		return token.NewFileStorage(cfg.TokenCache.Path, sealer), nil
	case "redis":
		return token.NewRedisStorage(redisClient, ""), nil
	default:
		return nil, nil
	}
}
