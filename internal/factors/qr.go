package factors

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// GenerateQR inicia un login por código QR contra un perfil de registro de
// autenticadores. El challenge trae el PNG en base64 y los identificadores
// de sesión del dispositivo (dsi/lsi) para el verify posterior.
func (s *Service) GenerateQR(ctx context.Context, accessToken, profileID string) (*Challenge, error) {
	resp, err := s.rest.Get(ctx, "/v2.0/factors/qr/authenticate", rest.Options{
		Bearer: accessToken,
		Query:  url.Values{"profileId": {profileID}},
	})
	if err != nil {
		return nil, err
	}
	var ch Challenge
	if err := resp.Decode(&ch); err != nil {
		return nil, err
	}
	ch.Raw = resp.Data
	return &ch, nil
}

// VerifyQR consulta el estado de un login QR. Mientras el usuario no
// escanee, el proveedor responde sin aserción y con un estado pendiente.
func (s *Service) VerifyQR(ctx context.Context, accessToken, verificationID, lsi string) (*Evaluation, error) {
	resp, err := s.rest.Post(ctx, "/v2.0/factors/qr/"+verificationID,
		map[string]string{"lsi": lsi},
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	ev, err := decodeEvaluation(resp)
	if err != nil {
		return nil, err
	}
	if ev.Assertion == "" {
		ev.Pending = true
	}
	return ev, nil
}

func (s *Service) generateQR(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error) {
	return s.GenerateQR(ctx, accessToken, p.ProfileID)
}

func (s *Service) evaluateQR(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	return s.VerifyQR(ctx, accessToken, p.VerificationID, p.LSI)
}
