package factors

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// GenerateOTP dispara el envío de un OTP por el canal del enrolment (email,
// SMS o voz). El challenge trae el ID de la verificación y la correlación
// que el usuario ve como prefijo del código.
func (s *Service) GenerateOTP(ctx context.Context, accessToken string, kind Kind, enrolmentID string) (*Challenge, error) {
	if kind != EmailOTP && kind != SMSOTP && kind != VoiceOTP {
		return nil, fmt.Errorf("factors: %s no es un factor OTP transitorio", kind)
	}
	resp, err := s.rest.Post(ctx,
		fmt.Sprintf("/v2.0/factors/%s/%s/verifications", kind, enrolmentID),
		nil, rest.Options{Bearer: accessToken})
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

// VerifyOTP completa una verificación OTP iniciada con GenerateOTP.
func (s *Service) VerifyOTP(ctx context.Context, accessToken string, kind Kind, enrolmentID, verificationID, otp string) (*Evaluation, error) {
	if kind != EmailOTP && kind != SMSOTP && kind != VoiceOTP {
		return nil, fmt.Errorf("factors: %s no es un factor OTP transitorio", kind)
	}
	resp, err := s.rest.Post(ctx,
		fmt.Sprintf("/v2.0/factors/%s/%s/verifications/%s", kind, enrolmentID, verificationID),
		map[string]string{"otp": otp},
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}
