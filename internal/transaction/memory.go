package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore guarda transacciones en memoria del proceso sobre go-cache.
// El TTL absoluto se preserva en Update reinsertando con la vida restante.
type MemoryStore struct {
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemoryStore crea un MemoryStore. ttl <= 0 usa DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		c:   gocache.New(ttl, time.Minute),
		ttl: ttl,
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		if err := s.c.Add(id, cloneRecord(r), s.ttl); err == nil {
			return id, nil
		}
	}
	// Cinco colisiones de UUIDv4 seguidas no pasan en la práctica.
	return "", fmt.Errorf("transaction: no se pudo generar un ID único")
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.c.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(v.(*Record)), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exp, ok := s.c.GetWithExpiration(id)
	if !ok {
		return ErrNotFound
	}
	remaining := time.Until(exp)
	if remaining <= 0 {
		return ErrNotFound
	}
	r := cloneRecord(v.(*Record))
	p.apply(r)
	s.c.Set(id, r, remaining)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.c.Get(id); !ok {
		return ErrNotFound
	}
	s.c.Delete(id)
	return nil
}

// Len retorna la cantidad de transacciones vivas. Solo para tests/metrics.
func (s *MemoryStore) Len() int {
	return s.c.ItemCount()
}

// cloneRecord copia el record para que los llamadores no muten el estado
// interno del cache por referencia compartida.
func cloneRecord(r *Record) *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Assessment != nil {
		a := *r.Assessment
		if r.Assessment.AllowedFactors != nil {
			a.AllowedFactors = append([]string(nil), r.Assessment.AllowedFactors...)
		}
		cp.Assessment = &a
	}
	if r.Pending != nil {
		pf := *r.Pending
		if r.Pending.FIDO != nil {
			pf.FIDO = append([]byte(nil), r.Pending.FIDO...)
		}
		cp.Pending = &pf
	}
	return &cp
}
