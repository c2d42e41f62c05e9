// Package policy habla con el motor de riesgo del proveedor a través del
// endpoint OIDC de tokens: el grant policyauth para la evaluación inicial y
// el grant jwt-bearer para validar aserciones de factores completados.
package policy

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
)

const tokenPath = "/v1.0/endpoint/default/token"

// jwtBearerGrant es el grant type para canjear una aserción JWT.
const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// Context describe al user-agent que intenta autenticarse. El motor de
// riesgo lo usa como insumo de la evaluación.
type Context struct {
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
	IPAddress string `json:"ipAddress"`
}

// Assessment es la respuesta del motor de riesgo. Siempre trae un token;
// AllowedFactors vacío significa acceso pleno (allow), no vacío significa
// que se requieren más factores de la lista.
type Assessment struct {
	token.Token
	AllowedFactors []string `json:"allowedFactors,omitempty"`
}

// Requires indica si el assessment exige más factores.
func (a *Assessment) Requires() bool {
	return len(a.AllowedFactors) > 0
}

// Gateway realiza las llamadas de política contra el tenant.
type Gateway struct {
	rest         *rest.Client
	clientID     string
	clientSecret string
}

// NewGateway crea un Gateway con las credenciales de la aplicación.
func NewGateway(rc *rest.Client, clientID, clientSecret string) *Gateway {
	return &Gateway{rest: rc, clientID: clientID, clientSecret: clientSecret}
}

func (pc Context) apply(form url.Values) {
	form.Set("sessionId", pc.SessionID)
	form.Set("userAgent", pc.UserAgent)
	form.Set("ipAddress", pc.IPAddress)
}

// Assess corre la evaluación inicial de política con el grant policyauth.
// Un 4xx del proveedor significa deny; ver Denied.
func (g *Gateway) Assess(ctx context.Context, pc Context) (*Assessment, error) {
	form := url.Values{}
	form.Set("grant_type", "policyauth")
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	pc.apply(form)

	var a Assessment
	if err := g.rest.PostForm(ctx, tokenPath, form, &a); err != nil {
		return nil, err
	}
	stampToken(&a)
	return &a, nil
}

// Validate canjea la aserción JWT emitida por un factor completado,
// autenticando con el access token del assessment vigente. La respuesta es
// o bien un token definitivo (allow) o un nuevo assessment con los factores
// que faltan (requires).
func (g *Gateway) Validate(ctx context.Context, accessToken, assertion string, pc Context) (*Assessment, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)
	pc.apply(form)

	resp, err := g.rest.Post(ctx, tokenPath, form, rest.Options{Bearer: accessToken, Form: true})
	if err != nil {
		return nil, err
	}
	var a Assessment
	if err := resp.Decode(&a); err != nil {
		return nil, err
	}
	stampToken(&a)
	return &a, nil
}

// stampToken fija IssuedAt localmente, igual que el cliente de tokens.
func stampToken(a *Assessment) {
	if a.IssuedAt == 0 && a.ExpiresIn > 0 {
		a.IssuedAt = time.Now().UnixMilli()
	}
}

// Denied indica si err corresponde a un rechazo del motor de riesgo
// (4xx del proveedor) y no a una falla de transporte.
func Denied(err error) (*rest.APIError, bool) {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		return apiErr, true
	}
	return nil, false
}
