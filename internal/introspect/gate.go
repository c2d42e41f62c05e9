// Package introspect implementa la verificación de bearer tokens contra el
// endpoint de introspección del proveedor, con un cache acotado de
// resultados para no pagar un round trip por request.
package introspect

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/adaptivemfa/internal/cache"
	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/metrics"
	"github.com/dropDatabas3/adaptivemfa/internal/observability/logger"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
)

// mfaChallengeScope marca un token de un flujo MFA a medio completar.
const mfaChallengeScope = "mfa_challenge"

// Config controla el gate de verificación.
type Config struct {
	// TTL fija la vida de cada entrada del cache. Cero usa la vida
	// restante del token (exp - now).
	TTL time.Duration

	// DenyMFAChallenge rechaza tokens cuyo scope indica un desafío MFA
	// incompleto. Es una decisión de política explícita, no un default
	// implícito: un recurso puede querer aceptarlos (ej. la página que
	// pide el segundo factor).
	DenyMFAChallenge bool
}

// Gate verifica bearer tokens. Solo los resultados activos se cachean; un
// token inactivo se reconsulta siempre.
type Gate struct {
	tokens *token.Client
	cache  cache.Cache
	cfg    Config
}

// New crea el gate con el cache inyectado.
func New(tc *token.Client, c cache.Cache, cfg Config) *Gate {
	return &Gate{tokens: tc, cache: c, cfg: cfg}
}

// Verify valida un access token. Retorna la introspección si el token es
// aceptado, o un errs.TokenError si el proveedor lo reporta inactivo o la
// política lo rechaza. Errores de transporte se propagan tal cual.
func (g *Gate) Verify(ctx context.Context, raw string) (*token.Introspection, error) {
	if raw == "" {
		return nil, errs.NewToken("falta el bearer token")
	}

	if b, ok := g.cache.Get(raw); ok {
		var in token.Introspection
		if err := json.Unmarshal(b, &in); err == nil {
			metrics.Introspections.WithLabelValues("cache").Inc()
			return g.applyPolicy(&in)
		}
		// Entrada corrupta: descartar y reconsultar.
		g.cache.Delete(raw)
	}

	in, err := g.tokens.Introspect(ctx, raw)
	if err != nil {
		metrics.Introspections.WithLabelValues("error").Inc()
		return nil, err
	}
	if !in.Active {
		metrics.Introspections.WithLabelValues("inactive").Inc()
		return nil, errs.NewToken("el token no está activo")
	}

	g.store(raw, in)
	metrics.Introspections.WithLabelValues("provider").Inc()
	return g.applyPolicy(in)
}

// applyPolicy aplica el flag de MFA challenge sobre un resultado activo.
func (g *Gate) applyPolicy(in *token.Introspection) (*token.Introspection, error) {
	if g.cfg.DenyMFAChallenge && in.Scope == mfaChallengeScope {
		return nil, errs.NewToken("el token pertenece a un desafío MFA incompleto")
	}
	return in, nil
}

// store cachea el resultado con el TTL configurado o la vida restante.
func (g *Gate) store(raw string, in *token.Introspection) {
	ttl := g.cfg.TTL
	if ttl == 0 {
		ttl = g.remainingLifetime(raw, in)
	}
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(in)
	if err != nil {
		return
	}
	g.cache.Set(raw, b, ttl)
}

// remainingLifetime deriva la vida restante del token: del exp de la
// introspección si vino, o del claim exp del propio JWT como fallback.
func (g *Gate) remainingLifetime(raw string, in *token.Introspection) time.Duration {
	exp := in.Exp
	if exp == 0 {
		exp = jwtExp(raw)
	}
	if exp == 0 {
		return 0
	}
	return time.Until(time.Unix(exp, 0))
}

// jwtExp extrae el claim exp sin verificar la firma: acá solo decide cuánto
// cachear, la validez la dictó la introspección.
func jwtExp(raw string) int64 {
	parser := jwt.NewParser()
	t, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return 0
	}
	expTime, err := t.Claims.GetExpirationTime()
	if err != nil || expTime == nil {
		logger.L().Debug("token sin claim exp, no se cachea")
		return 0
	}
	return expTime.Unix()
}
