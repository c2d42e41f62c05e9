package factors

import (
	"context"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// GenerateQuestions inicia una verificación de preguntas de conocimiento y
// retorna las preguntas a responder.
func (s *Service) GenerateQuestions(ctx context.Context, accessToken, enrolmentID string) (*Challenge, error) {
	resp, err := s.rest.Post(ctx,
		"/v2.0/factors/questions/"+enrolmentID+"/verifications",
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

// VerifyQuestions completa la verificación con las respuestas del usuario.
func (s *Service) VerifyQuestions(ctx context.Context, accessToken, enrolmentID, verificationID string, answers []Answer) (*Evaluation, error) {
	resp, err := s.rest.Post(ctx,
		"/v2.0/factors/questions/"+enrolmentID+"/verifications/"+verificationID,
		map[string][]Answer{"questions": answers},
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func (s *Service) generateQuestions(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error) {
	return s.GenerateQuestions(ctx, accessToken, p.EnrolmentID)
}

func (s *Service) evaluateQuestions(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	return s.VerifyQuestions(ctx, accessToken, p.EnrolmentID, p.VerificationID, p.Answers)
}
