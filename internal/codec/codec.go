// Package codec implementa los sobres base64url(JSON) que el protocolo usa
// como parámetros opacos (p.ej. client data de pruebas de posesión FIDO).
// Funciones puras, sin estado.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodeString codifica un string en base64url sin padding.
func EncodeString(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// EncodeBytes codifica bytes crudos (típicamente JSON ya serializado).
func EncodeBytes(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeObject serializa v a JSON y lo codifica en base64url.
func EncodeObject(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeString decodifica base64url (con o sin padding) a bytes.
func DecodeString(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return b, nil
}

// DecodeObject decodifica base64url(JSON) sobre v.
func DecodeObject(s string, v any) error {
	b, err := DecodeString(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
