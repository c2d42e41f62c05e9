package token

import (
	"context"
	"net/url"
	"time"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

const (
	tokenPath      = "/v1.0/endpoint/default/token"
	introspectPath = "/v1.0/endpoint/default/introspect"
	revokePath     = "/v1.0/endpoint/default/revoke"
	userInfoPath   = "/v1.0/endpoint/default/userinfo"
)

// Client habla con los endpoints OIDC del tenant usando las credenciales
// de la aplicación cliente.
type Client struct {
	rest         *rest.Client
	clientID     string
	clientSecret string
	scope        string
}

// NewClient crea un cliente de tokens. scope es opcional y solo aplica al
// grant client_credentials.
func NewClient(rc *rest.Client, clientID, clientSecret, scope string) *Client {
	return &Client{rest: rc, clientID: clientID, clientSecret: clientSecret, scope: scope}
}

func (c *Client) creds() url.Values {
	v := url.Values{}
	v.Set("client_id", c.clientID)
	v.Set("client_secret", c.clientSecret)
	return v
}

// stamp fija IssuedAt localmente; el proveedor no lo envía.
func stamp(t *Token) *Token {
	if t.IssuedAt == 0 {
		t.IssuedAt = time.Now().UnixMilli()
	}
	return t
}

// ClientCredentials pide un token de servicio con el grant client_credentials.
func (c *Client) ClientCredentials(ctx context.Context) (*Token, error) {
	form := c.creds()
	form.Set("grant_type", "client_credentials")
	if c.scope != "" {
		form.Set("scope", c.scope)
	}
	var t Token
	if err := c.rest.PostForm(ctx, tokenPath, form, &t); err != nil {
		return nil, err
	}
	return stamp(&t), nil
}

// Password pide un token con el grant password (ROPC).
func (c *Client) Password(ctx context.Context, username, password string) (*Token, error) {
	form := c.creds()
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	var t Token
	if err := c.rest.PostForm(ctx, tokenPath, form, &t); err != nil {
		return nil, err
	}
	return stamp(&t), nil
}

// Refresh renueva un access token con su refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := c.creds()
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var t Token
	if err := c.rest.PostForm(ctx, tokenPath, form, &t); err != nil {
		return nil, err
	}
	return stamp(&t), nil
}

// Introspect consulta el estado de un token (access o refresh).
func (c *Client) Introspect(ctx context.Context, raw string) (*Introspection, error) {
	form := c.creds()
	form.Set("token", raw)
	var in Introspection
	if err := c.rest.PostForm(ctx, introspectPath, form, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Revoke revoca un token en el proveedor.
func (c *Client) Revoke(ctx context.Context, raw string) error {
	form := c.creds()
	form.Set("token", raw)
	return c.rest.PostForm(ctx, revokePath, form, nil)
}

// UserInfo retorna los claims del usuario dueño del token.
func (c *Client) UserInfo(ctx context.Context, raw string) (map[string]any, error) {
	form := url.Values{}
	form.Set("access_token", raw)
	out := map[string]any{}
	if err := c.rest.PostForm(ctx, userInfoPath, form, &out); err != nil {
		return nil, err
	}
	return out, nil
}
