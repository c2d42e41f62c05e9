package factors

import (
	"context"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// FIDOResult es la respuesta del autenticador WebAuthn del user-agent.
type FIDOResult struct {
	CredentialID      string `json:"credentialId"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	UserHandle        string `json:"userHandle,omitempty"`
	Signature         string `json:"signature"`
}

// GenerateFIDO pide las opciones de aserción WebAuthn para un usuario. La
// respuesta cruda (challenge, allowCredentials, etc.) va en Raw para que el
// user-agent la consuma tal cual.
func (s *Service) GenerateFIDO(ctx context.Context, accessToken, relyingPartyID, userID string) (*Challenge, error) {
	body := map[string]string{
		"userVerification": "preferred",
		"userId":           userID,
	}
	resp, err := s.rest.Post(ctx,
		"/v2.0/factors/fido2/relyingparties/"+relyingPartyID+"/assertion/options",
		body, rest.Options{Bearer: accessToken})
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

// VerifyFIDO remite el resultado de la aserción WebAuthn al relying party.
func (s *Service) VerifyFIDO(ctx context.Context, accessToken, relyingPartyID string, r FIDOResult) (*Evaluation, error) {
	body := map[string]any{
		"type":  "public-key",
		"id":    r.CredentialID,
		"rawId": r.CredentialID,
		"response": map[string]string{
			"clientDataJSON":    r.ClientDataJSON,
			"authenticatorData": r.AuthenticatorData,
			"userHandle":        r.UserHandle,
			"signature":         r.Signature,
		},
	}
	resp, err := s.rest.Post(ctx,
		"/v2.0/factors/fido2/relyingparties/"+relyingPartyID+"/assertion/result",
		body, rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func (s *Service) generateFIDO(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error) {
	return s.GenerateFIDO(ctx, accessToken, p.RelyingPartyID, p.UserID)
}

func (s *Service) evaluateFIDO(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	if p.FIDO == nil {
		return nil, errNoFIDOResult
	}
	return s.VerifyFIDO(ctx, accessToken, p.RelyingPartyID, *p.FIDO)
}
