package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/adaptivemfa/internal/observability/logger"
	"github.com/dropDatabas3/adaptivemfa/internal/util"
)

// DefaultMargin es el colchón antes de la expiración a partir del cual un
// token cacheado deja de considerarse usable.
const DefaultMargin = 30 * time.Second

// Cache mantiene fresco el token de servicio (client_credentials): reusa el
// vigente, renueva bajo demanda y coalesce renovaciones concurrentes en una
// sola llamada al proveedor.
type Cache struct {
	client  *Client
	storage Storage // opcional
	margin  time.Duration

	// verifyOnLoad introspecciona el token recuperado del storage antes de
	// confiar en él; un token revocado fuera de banda se descarta.
	verifyOnLoad bool

	mu      sync.RWMutex
	current *Token

	group  singleflight.Group
	loaded bool

	onRefresh func() // hook de métricas, opcional
}

// CacheOption configura el Cache.
type CacheOption func(*Cache)

// WithStorage agrega persistencia durable al cache.
func WithStorage(s Storage) CacheOption {
	return func(c *Cache) { c.storage = s }
}

// WithMargin cambia el margen de frescura (default 30s).
func WithMargin(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.margin = d
		}
	}
}

// WithVerifyOnLoad hace que los tokens recuperados del storage se validen
// con introspección antes de usarse.
func WithVerifyOnLoad(v bool) CacheOption {
	return func(c *Cache) { c.verifyOnLoad = v }
}

// WithRefreshHook registra un callback que se dispara en cada renovación
// real contra el proveedor.
func WithRefreshHook(fn func()) CacheOption {
	return func(c *Cache) { c.onRefresh = fn }
}

// NewCache crea el cache de token de servicio.
func NewCache(client *Client, opts ...CacheOption) *Cache {
	c := &Cache{client: client, margin: DefaultMargin}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get retorna un token de servicio usable: el cacheado si aún tiene más de
// margin de vida, o uno recién emitido. Llamadas concurrentes durante una
// renovación comparten el resultado.
func (c *Cache) Get(ctx context.Context) (*Token, error) {
	c.mu.RLock()
	t := c.current
	c.mu.RUnlock()
	if t.ValidFor(c.margin) {
		return t, nil
	}

	v, err, _ := c.group.Do("service-token", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// refresh corre dentro de singleflight: re-chequea el token en memoria,
// intenta el storage en el primer uso y como último recurso pide uno nuevo.
func (c *Cache) refresh(ctx context.Context) (*Token, error) {
	c.mu.RLock()
	t := c.current
	loaded := c.loaded
	c.mu.RUnlock()
	if t.ValidFor(c.margin) {
		return t, nil
	}

	if !loaded && c.storage != nil {
		if st := c.loadFromStorage(ctx); st != nil {
			c.store(st)
			return st, nil
		}
	}

	fresh, err := c.client.ClientCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if c.onRefresh != nil {
		c.onRefresh()
	}
	c.store(fresh)
	if c.storage != nil {
		if err := c.storage.Save(ctx, fresh); err != nil {
			logger.L().Warn("no se pudo persistir el token de servicio", logger.Err(err))
		}
	}
	return fresh, nil
}

// loadFromStorage recupera el token durable si sigue vigente (y activo,
// cuando verifyOnLoad está habilitado). Retorna nil si no sirve.
func (c *Cache) loadFromStorage(ctx context.Context) *Token {
	t, err := c.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			logger.L().Warn("error cargando token persistido", logger.Err(err))
		}
		return nil
	}
	if !t.ValidFor(c.margin) {
		return nil
	}
	if c.verifyOnLoad {
		in, err := c.client.Introspect(ctx, t.AccessToken)
		if err != nil || !in.Active {
			logger.L().Info("token persistido inactivo, se descarta")
			_ = c.storage.Clear(ctx)
			return nil
		}
	}
	return t
}

func (c *Cache) store(t *Token) {
	c.mu.Lock()
	c.current = t
	c.loaded = true
	c.mu.Unlock()
}

// Revoke revoca raw en el proveedor. Si coincide con el token cacheado,
// limpia la memoria y el storage durable para no seguir sirviendo un token
// muerto.
func (c *Cache) Revoke(ctx context.Context, raw string) error {
	if err := c.client.Revoke(ctx, raw); err != nil {
		return err
	}
	c.mu.Lock()
	match := c.current != nil && c.current.AccessToken == raw
	if match {
		c.current = nil
	}
	c.mu.Unlock()
	logger.L().Info("token revocado", logger.String("token", util.MaskToken(raw)), logger.Bool("cached", match))
	if match && c.storage != nil {
		if err := c.storage.Clear(ctx); err != nil {
			logger.L().Warn("no se pudo limpiar el token persistido", logger.Err(err))
		}
	}
	return nil
}

// Invalidate descarta el token en memoria sin tocar el proveedor. Útil
// cuando una llamada downstream retorna 401 pese a un token "vigente".
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}
