package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init construye el singleton. Es idempotente: solo la primera llamada tiene
// efecto, así los tests pueden usar el logger sin coordinar el arranque.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el singleton. Si Init no corrió todavía, arma uno de desarrollo
// con nivel info.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna el singleton con un nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna el singleton con campos persistentes adicionales.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync descarga los buffers pendientes; para el defer de main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
