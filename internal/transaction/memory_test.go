package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/adaptivemfa/internal/policy"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
)

func testRecord(accessToken string) *Record {
	return &Record{
		Assessment: &policy.Assessment{
			Token:          token.Token{AccessToken: accessToken, ExpiresIn: 3600},
			AllowedFactors: []string{"password", "qr"},
		},
	}
}

func TestCreateGetRoundtrip(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id, err := s.Create(ctx, testRecord("tok-1"))
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if id == "" {
		t.Fatal("Create retornó id vacío")
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if rec.Assessment.AccessToken != "tok-1" {
		t.Fatalf("access token mismatch: got %q", rec.Assessment.AccessToken)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := NewMemoryStore(0)
	if _, err := s.Get(context.Background(), "no-existe"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
}

func TestUpdateShallowMerge(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id, _ := s.Create(ctx, testRecord("tok-1"))

	uid := "user-9"
	if err := s.Update(ctx, id, Patch{UserID: &uid}); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	// el merge es shallow: userId cambió, el assessment quedó intacto
	if rec.UserID != "user-9" {
		t.Fatalf("UserID: got %q want %q", rec.UserID, "user-9")
	}
	if rec.Assessment.AccessToken != "tok-1" {
		t.Fatalf("el update pisó el assessment: %q", rec.Assessment.AccessToken)
	}

	pf := &PendingFactor{Kind: "emailotp", EnrolmentID: "e1", VerificationID: "v1"}
	if err := s.Update(ctx, id, Patch{Pending: pf}); err != nil {
		t.Fatalf("Update pending err: %v", err)
	}
	rec, _ = s.Get(ctx, id)
	if rec.Pending == nil || rec.Pending.VerificationID != "v1" {
		t.Fatalf("pending no persistido: %+v", rec.Pending)
	}
	if rec.UserID != "user-9" {
		t.Fatal("el segundo update pisó userId")
	}

	if err := s.Update(ctx, id, Patch{ClearPending: true}); err != nil {
		t.Fatalf("Update clear err: %v", err)
	}
	rec, _ = s.Get(ctx, id)
	if rec.Pending != nil {
		t.Fatalf("pending debía limpiarse: %+v", rec.Pending)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	s := NewMemoryStore(0)
	uid := "x"
	if err := s.Update(context.Background(), "nope", Patch{UserID: &uid}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
}

// El TTL es absoluto desde la creación: un update NO lo renueva. Es una
// decisión deliberada, no un descuido; este test la fija.
func TestTTLIsAbsoluteNotSliding(t *testing.T) {
	s := NewMemoryStore(150 * time.Millisecond)
	ctx := context.Background()

	id, _ := s.Create(ctx, testRecord("tok-1"))

	time.Sleep(100 * time.Millisecond)
	uid := "user-1"
	if err := s.Update(ctx, id, Patch{UserID: &uid}); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	// si el TTL fuera sliding, el update de recién lo habría renovado
	time.Sleep(100 * time.Millisecond)
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("la transacción debía expirar pese al update, got %v", err)
	}
}

func TestExpiredRecordIsNotFound(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	id, _ := s.Create(ctx, testRecord("tok-1"))
	time.Sleep(80 * time.Millisecond)

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound tras expirar, got %v", err)
	}
	uid := "u"
	if err := s.Update(ctx, id, Patch{UserID: &uid}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update sobre expirada: esperaba ErrNotFound, got %v", err)
	}
}

func TestDoubleDeleteFails(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id, _ := s.Create(ctx, testRecord("tok-1"))
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("primer Delete err: %v", err)
	}
	// borrar dos veces es un bug del llamador y debe fallar
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("segundo Delete: esperaba ErrNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id, _ := s.Create(ctx, testRecord("tok-1"))
	rec, _ := s.Get(ctx, id)
	rec.Assessment.AccessToken = "mutado"
	rec.UserID = "mutado"

	again, _ := s.Get(ctx, id)
	if again.Assessment.AccessToken != "tok-1" || again.UserID != "" {
		t.Fatal("la mutación del caller alcanzó el estado interno del store")
	}
}
