package secretbox

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return k
}

func TestSealOpenRoundtrip(t *testing.T) {
	s, err := NewFromKey(testKey(t))
	if err != nil {
		t.Fatalf("NewFromKey: %v", err)
	}
	plain := []byte(`{"access_token":"abc123","expires_in":7200}`)

	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.Contains(sealed, "|") {
		t.Fatalf("formato inesperado: %q", sealed)
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("roundtrip: got %q want %q", got, plain)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, err := NewFromKey(testKey(t))
	if err != nil {
		t.Fatalf("NewFromKey: %v", err)
	}
	sealed, err := s.Seal([]byte("secreto"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	parts := strings.SplitN(sealed, "|", 2)
	ct, _ := base64.StdEncoding.DecodeString(parts[1])
	ct[0] ^= 0xff
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(ct)

	if _, err := s.Open(tampered); err == nil {
		t.Fatal("esperaba error de autenticación GCM")
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("esperaba error con clave vacía")
	}
	short := base64.StdEncoding.EncodeToString([]byte("corta"))
	if _, err := New(short); err == nil {
		t.Fatal("esperaba error con clave corta")
	}
	ok := base64.StdEncoding.EncodeToString(make([]byte, 32))
	if _, err := New(ok); err != nil {
		t.Fatalf("clave válida rechazada: %v", err)
	}
}
