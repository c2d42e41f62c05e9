package factors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// IdentitySource es una fuente de identidad habilitada para login con
// password (ej. Cloud Directory, un LDAP federado).
type IdentitySource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LookupIdentitySources resuelve las fuentes de identidad de password.
// Con name vacío retorna todas.
func (s *Service) LookupIdentitySources(ctx context.Context, accessToken, name string) ([]IdentitySource, error) {
	opt := rest.Options{Bearer: accessToken}
	if name != "" {
		opt.Query = url.Values{"search": {fmt.Sprintf("name = %q", name)}}
	}
	resp, err := s.rest.Get(ctx, "/v1.0/authnmethods/password", opt)
	if err != nil {
		return nil, err
	}
	var out struct {
		Password []IdentitySource `json:"password"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Password, nil
}

// AuthenticatePassword verifica usuario y contraseña contra una fuente de
// identidad. La respuesta trae el ID del usuario y la aserción a validar.
func (s *Service) AuthenticatePassword(ctx context.Context, accessToken, identitySourceID, username, password string) (*Evaluation, error) {
	body := map[string]string{"username": username, "password": password}
	resp, err := s.rest.Post(ctx, "/v1.0/authnmethods/password/"+identitySourceID, body,
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func (s *Service) evaluatePassword(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	return s.AuthenticatePassword(ctx, accessToken, p.IdentitySourceID, p.Username, p.Password)
}
