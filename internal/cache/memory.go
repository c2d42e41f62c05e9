package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory es un cache en memoria sobre go-cache, con capacidad acotada
// opcional. Cuando la capacidad se alcanza, se desaloja la entrada más
// próxima a expirar (la de menor valor restante para el proceso).
type Memory struct {
	c        *gocache.Cache
	capacity int
	mu       sync.Mutex // serializa Set para que el desalojo no corra de más
}

// NewMemory crea un cache en memoria.
// defaultTTL aplica cuando Set recibe ttl 0; capacity 0 significa sin límite.
func NewMemory(defaultTTL time.Duration, capacity int) *Memory {
	return &Memory{
		c:        gocache.New(defaultTTL, time.Minute),
		capacity: capacity,
	}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	return b, true
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 && m.c.ItemCount() >= m.capacity {
		if _, exists := m.c.Get(key); !exists {
			m.evictSoonest()
		}
	}
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) { m.c.Delete(key) }

func (m *Memory) Len() int { return m.c.ItemCount() }

// evictSoonest elimina la entrada con expiración más cercana.
// Las entradas sin expiración solo se desalojan si no hay otra candidata.
func (m *Memory) evictSoonest() {
	var victim string
	var victimExp int64
	found := false

	for k, it := range m.c.Items() {
		if it.Expiration == 0 {
			if !found && victim == "" {
				victim = k
			}
			continue
		}
		if !found || it.Expiration < victimExp {
			victim, victimExp, found = k, it.Expiration, true
		}
	}
	if victim != "" {
		m.c.Delete(victim)
	}
}
