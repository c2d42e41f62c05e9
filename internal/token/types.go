// Package token implementa el cliente del endpoint OIDC de tokens del
// proveedor (grants client_credentials, password y refresh_token, más
// introspect/revoke/userinfo) y el cache que mantiene fresco el token de
// servicio del proceso.
package token

import "time"

// Token es un bearer token emitido por el proveedor.
// IssuedAt se asigna localmente (epoch millis) al recibir la respuesta;
// ExpiryTime deriva el instante absoluto de expiración.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	GrantID      string `json:"grant_id,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	IssuedAt     int64  `json:"issued_at"`
}

// ExpiryTime retorna el instante absoluto de expiración.
func (t *Token) ExpiryTime() time.Time {
	return time.UnixMilli(t.IssuedAt + t.ExpiresIn*1000)
}

// ValidFor indica si el token sigue siendo usable con el margen dado.
func (t *Token) ValidFor(margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return time.Until(t.ExpiryTime()) > margin
}

// Introspection es la respuesta del endpoint de introspección (RFC 7662).
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Sub       string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}
