package factors

import (
	"context"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// VerifyTOTP verifica un código TOTP contra un enrolment. No hay paso de
// generación: el código sale de la app del usuario.
func (s *Service) VerifyTOTP(ctx context.Context, accessToken, enrolmentID, otp string) (*Evaluation, error) {
	resp, err := s.rest.Post(ctx, "/v2.0/factors/totp/"+enrolmentID,
		map[string]string{"otp": otp},
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func (s *Service) evaluateTOTP(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	return s.VerifyTOTP(ctx, accessToken, p.EnrolmentID, p.OTP)
}
