// Package cache provee una abstracción de cache con TTL por entrada y
// capacidad acotada opcional. La misma abstracción respalda el cache de
// introspección y cualquier otro cache interno del motor.
package cache

import "time"

// Cache define las operaciones mínimas de un cache TTL.
type Cache interface {
	// Get retorna el valor y true si la key existe y no expiró.
	Get(key string) (value []byte, ok bool)

	// Set guarda un valor con TTL. Si ttl es 0 se usa el TTL por defecto
	// del backend; si el backend no tiene, la entrada no expira.
	Set(key string, value []byte, ttl time.Duration)

	// Delete elimina una key. No-op si no existe.
	Delete(key string)

	// Len retorna la cantidad de entradas vivas.
	Len() int
}
