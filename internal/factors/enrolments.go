package factors

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

var errNoFIDOResult = errors.New("factors: falta el resultado WebAuthn del autenticador")

// Enrolment es un factor registrado por un usuario en el proveedor.
type Enrolment struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Type       string         `json:"type"`
	SubType    string         `json:"subType,omitempty"`
	Enabled    bool           `json:"enabled"`
	Validated  bool           `json:"validated"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Enrolments retorna los factores registrados de un usuario.
func (s *Service) Enrolments(ctx context.Context, accessToken, userID string) ([]Enrolment, error) {
	resp, err := s.rest.Get(ctx, "/v2.0/factors", rest.Options{
		Bearer: accessToken,
		Query:  url.Values{"search": {fmt.Sprintf("userId = %q", userID)}},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Factors []Enrolment `json:"factors"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Factors, nil
}
