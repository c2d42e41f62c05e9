package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/adaptivemfa/internal/errs"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// Tenant del proveedor de identidad y credenciales de la aplicación.
	Provider struct {
		TenantURL    string `yaml:"tenant_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Scope        string `yaml:"scope"`
	} `yaml:"provider"`

	Transaction struct {
		// memory | redis
		Store string `yaml:"store"`
		TTL   string `yaml:"ttl"`
	} `yaml:"transaction"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	TokenCache struct {
		Margin       string `yaml:"margin"`
		VerifyOnLoad bool   `yaml:"verify_on_load"`
		// none | file | redis
		Storage string `yaml:"storage"`
		Path    string `yaml:"path"`
		// base64(32 bytes); si está, el token persistido en disco va cifrado
		SealKey string `yaml:"seal_key"`
	} `yaml:"token_cache"`

	Introspect struct {
		CacheMaxSize     int    `yaml:"cache_max_size"`
		CacheTTL         string `yaml:"cache_ttl"`
		DenyMFAChallenge *bool  `yaml:"deny_mfa_challenge"`
	} `yaml:"introspect"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Transaction.Store == "" {
		c.Transaction.Store = "memory"
	}
	if c.Transaction.TTL == "" {
		c.Transaction.TTL = "600s"
	}
	if c.TokenCache.Margin == "" {
		c.TokenCache.Margin = "30s"
	}
	if c.TokenCache.Storage == "" {
		c.TokenCache.Storage = "none"
	}
	if c.TokenCache.Path == "" {
		c.TokenCache.Path = "data/service_token.sealed"
	}
	if c.Introspect.CacheTTL == "" {
		c.Introspect.CacheTTL = "0s"
	}
	if c.Introspect.DenyMFAChallenge == nil {
		v := true
		c.Introspect.DenyMFAChallenge = &v
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{c.Transaction.TTL, c.TokenCache.Margin, c.Introspect.CacheTTL, c.Rate.Window} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// PROVIDER
	if v, ok := getEnvStr("TENANT_URL"); ok {
		c.Provider.TenantURL = v
	}
	if v, ok := getEnvStr("CLIENT_ID"); ok {
		c.Provider.ClientID = v
	}
	if v, ok := getEnvStr("CLIENT_SECRET"); ok {
		c.Provider.ClientSecret = v
	}
	if v, ok := getEnvStr("CLIENT_SCOPE"); ok {
		c.Provider.Scope = v
	}

	// TRANSACTION
	if v, ok := getEnvStr("TRANSACTION_STORE"); ok {
		c.Transaction.Store = v
	}
	if v, ok := getEnvStr("TRANSACTION_TTL"); ok {
		c.Transaction.TTL = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// TOKEN CACHE
	if v, ok := getEnvStr("TOKEN_CACHE_STORAGE"); ok {
		c.TokenCache.Storage = v
	}
	if v, ok := getEnvStr("TOKEN_CACHE_PATH"); ok {
		c.TokenCache.Path = v
	}
	if v, ok := getEnvStr("TOKEN_CACHE_SEAL_KEY"); ok {
		c.TokenCache.SealKey = v
	}
	if v, ok := getEnvBool("TOKEN_CACHE_VERIFY_ON_LOAD"); ok {
		c.TokenCache.VerifyOnLoad = v
	}

	// INTROSPECT
	if v, ok := getEnvInt("INTROSPECT_CACHE_MAX_SIZE"); ok {
		c.Introspect.CacheMaxSize = v
	}
	if v, ok := getEnvStr("INTROSPECT_CACHE_TTL"); ok {
		c.Introspect.CacheTTL = v
	}
	if v, ok := getEnvBool("INTROSPECT_DENY_MFA_CHALLENGE"); ok {
		c.Introspect.DenyMFAChallenge = &v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate chequea lo que no puede faltar para hablar con el proveedor.
func (c *Config) Validate() error {
	if c.Provider.TenantURL == "" {
		return errs.NewConfiguration("provider.tenant_url")
	}
	if c.Provider.ClientID == "" {
		return errs.NewConfiguration("provider.client_id")
	}
	if c.Provider.ClientSecret == "" {
		return errs.NewConfiguration("provider.client_secret")
	}
	if c.Transaction.Store != "memory" && c.Transaction.Store != "redis" {
		return errs.NewConfiguration("transaction.store")
	}
	if c.Transaction.Store == "redis" && c.Redis.Addr == "" {
		return errs.NewConfiguration("redis.addr")
	}
	switch c.TokenCache.Storage {
	case "none", "file":
	case "redis":
		if c.Redis.Addr == "" {
			return errs.NewConfiguration("redis.addr")
		}
	default:
		return errs.NewConfiguration("token_cache.storage")
	}
	return nil
}

// TransactionTTL retorna el TTL parseado. Load ya validó el formato.
func (c *Config) TransactionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Transaction.TTL)
	return d
}

// TokenMargin retorna el margen de frescura del token de servicio.
func (c *Config) TokenMargin() time.Duration {
	d, _ := time.ParseDuration(c.TokenCache.Margin)
	return d
}

// IntrospectTTL retorna el TTL fijo del cache de introspección (0 = vida
// restante del token).
func (c *Config) IntrospectTTL() time.Duration {
	d, _ := time.ParseDuration(c.Introspect.CacheTTL)
	return d
}

// RateWindow retorna la ventana del rate limiter.
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}
