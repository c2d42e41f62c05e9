// Package secretbox cifra blobs pequeños con AES-256-GCM. Se usa para sellar
// el token de servicio persistido en disco, de modo que un restart cálido no
// deje credenciales en texto plano.
//
// Formato: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSize = 12 // nonce recomendado para GCM (96 bits)
	keySize   = 32 // AES-256
	sep       = "|"
)

// Sealer cifra y descifra con una clave fija de 32 bytes.
type Sealer struct {
	aead cipher.AEAD
}

// New crea un Sealer desde una clave en base64 (std o raw).
// La clave debe decodificar a exactamente 32 bytes.
func New(keyB64 string) (*Sealer, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, errors.New("secretbox: clave vacía; genere una con: openssl rand -base64 32")
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(keyB64)
	}
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode clave: %w", err)
	}
	return NewFromKey(key)
}

// NewFromKey crea un Sealer desde una clave cruda de 32 bytes.
func NewFromKey(key []byte) (*Sealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secretbox: la clave debe tener %d bytes, tiene %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: cipher.NewGCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal cifra plain y devuelve base64(nonce)|base64(ciphertext).
func (s *Sealer) Seal(plain []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce random: %w", err)
	}
	ct := s.aead.Seal(nil, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra el formato producido por Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return nil, errors.New("secretbox: formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode nonce: %w", err)
	}
	if len(nonce) != nonceSize {
		return nil, fmt.Errorf("secretbox: nonce inválido: esperado %d bytes, obtuvo %d", nonceSize, len(nonce))
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode ciphertext: %w", err)
	}
	plain, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("secretbox: gcm auth/decrypt: %w", err)
	}
	return plain, nil
}
