package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/adaptivemfa/internal/security/secretbox"
	"github.com/dropDatabas3/adaptivemfa/internal/util/atomicwrite"
)

// ErrNoToken indica que el storage no tiene un token persistido.
var ErrNoToken = errors.New("token storage: sin token persistido")

// Storage persiste el token de servicio fuera de la memoria del proceso,
// para restarts cálidos. Un token cargado de acá NO debe confiarse a ciegas;
// ver Cache.VerifyOnLoad.
type Storage interface {
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, t *Token) error
	Clear(ctx context.Context) error
}

// ─────────────────────────────────────────────────────────────────────────
// File storage
// ─────────────────────────────────────────────────────────────────────────

// FileStorage guarda el token como JSON en disco, sellado con AES-GCM si se
// configura un Sealer.
type FileStorage struct {
	Path   string
	Sealer *secretbox.Sealer // opcional; nil => JSON plano con modo 0600
}

// NewFileStorage crea un FileStorage. sealer puede ser nil.
func NewFileStorage(path string, sealer *secretbox.Sealer) *FileStorage {
	return &FileStorage{Path: path, Sealer: sealer}
}

func (f *FileStorage) Load(ctx context.Context) (*Token, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("token storage: read %s: %w", f.Path, err)
	}
	if f.Sealer != nil {
		b, err = f.Sealer.Open(string(b))
		if err != nil {
			return nil, fmt.Errorf("token storage: unseal: %w", err)
		}
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("token storage: unmarshal: %w", err)
	}
	if t.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &t, nil
}

func (f *FileStorage) Save(ctx context.Context, t *Token) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("token storage: marshal: %w", err)
	}
	if f.Sealer != nil {
		sealed, err := f.Sealer.Seal(b)
		if err != nil {
			return fmt.Errorf("token storage: seal: %w", err)
		}
		b = []byte(sealed)
	}
	return atomicwrite.AtomicWriteFile(f.Path, b, 0o600)
}

func (f *FileStorage) Clear(ctx context.Context) error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("token storage: remove %s: %w", f.Path, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// Redis storage
// ─────────────────────────────────────────────────────────────────────────

// RedisStorage guarda el token en redis, con TTL igual a su vida restante
// (un token ya vencido no vale la pena persistirlo).
type RedisStorage struct {
	Client *redis.Client
	Key    string
}

// NewRedisStorage crea un RedisStorage con la key dada.
func NewRedisStorage(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = "adaptivemfa:service_token"
	}
	return &RedisStorage{Client: client, Key: key}
}

func (r *RedisStorage) Load(ctx context.Context) (*Token, error) {
	b, err := r.Client.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("token storage: redis get: %w", err)
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("token storage: unmarshal: %w", err)
	}
	return &t, nil
}

func (r *RedisStorage) Save(ctx context.Context, t *Token) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("token storage: marshal: %w", err)
	}
	ttl := time.Until(t.ExpiryTime())
	if ttl <= 0 {
		return nil
	}
	if err := r.Client.Set(ctx, r.Key, b, ttl).Err(); err != nil {
		return fmt.Errorf("token storage: redis set: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.Client.Del(ctx, r.Key).Err(); err != nil {
		return fmt.Errorf("token storage: redis del: %w", err)
	}
	return nil
}
