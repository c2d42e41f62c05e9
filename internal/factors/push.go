package factors

import (
	"context"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// pushExpiresIn es la vida de la notificación push en milisegundos.
const pushExpiresIn = 30000

// TransactionAttribute es un dato adicional mostrado en la notificación
// push (ej. ubicación, nombre de la app).
type TransactionAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type pushMethod struct {
	ID         string `json:"id"`
	MethodType string `json:"methodType"`
}

type pushGenerateRequest struct {
	TransactionData struct {
		Message         string                 `json:"message,omitempty"`
		OriginIPAddress string                 `json:"originIpAddress,omitempty"`
		OriginUserAgent string                 `json:"originUserAgent,omitempty"`
		AdditionalData  []TransactionAttribute `json:"additionalData,omitempty"`
	} `json:"transactionData"`
	PushNotification struct {
		Message string `json:"message,omitempty"`
		Send    bool   `json:"send"`
	} `json:"pushNotification"`
	AuthenticationMethods []pushMethod `json:"authenticationMethods"`
	Logic                 string       `json:"logic"`
	ExpiresIn             int          `json:"expiresIn"`
}

// GeneratePush crea una verificación en el autenticador del usuario y
// dispara la notificación push para que la firme.
func (s *Service) GeneratePush(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error) {
	req := pushGenerateRequest{
		AuthenticationMethods: []pushMethod{{ID: p.SignatureID, MethodType: "signature"}},
		Logic:                 "OR",
		ExpiresIn:             pushExpiresIn,
	}
	req.TransactionData.Message = p.Message
	req.TransactionData.OriginIPAddress = p.OriginIP
	req.TransactionData.OriginUserAgent = p.OriginUserAgent
	req.TransactionData.AdditionalData = p.AdditionalData
	req.PushNotification.Message = p.PushMessage
	req.PushNotification.Send = true

	resp, err := s.rest.Post(ctx,
		"/v1.0/authenticators/"+p.AuthenticatorID+"/verifications",
		req, rest.Options{Bearer: accessToken})
	if err != nil {
		return nil, err
	}
	var ch Challenge
	if err := resp.Decode(&ch); err != nil {
		return nil, err
	}
	ch.Raw = resp.Data
	ch.SignatureID = p.SignatureID
	return &ch, nil
}

// pendingPushStates son los estados del proveedor que significan "el
// usuario todavía no respondió".
var pendingPushStates = map[string]bool{
	"PENDING": true,
	"SENDING": true,
	"SENT":    true,
}

// PollPush consulta el estado de una verificación push. Mientras el usuario
// no apruebe ni rechace, el resultado es pendiente; al aprobar, la
// respuesta incluye la aserción a validar.
func (s *Service) PollPush(ctx context.Context, accessToken, authenticatorID, verificationID string) (*Evaluation, error) {
	resp, err := s.rest.Get(ctx,
		"/v1.0/authenticators/"+authenticatorID+"/verifications/"+verificationID,
		rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	ev, err := decodeEvaluation(resp)
	if err != nil {
		return nil, err
	}
	if ev.Assertion == "" && pendingPushStates[ev.State] {
		ev.Pending = true
	}
	return ev, nil
}

// VerifyPush remite la firma producida por el autenticador. userAction es
// la decisión del usuario (ej. VERIFY_ATTEMPT).
func (s *Service) VerifyPush(ctx context.Context, accessToken, authenticatorID, verificationID, signatureID, userAction, signedData string) (*Evaluation, error) {
	body := []map[string]string{{
		"id":         signatureID,
		"userAction": userAction,
		"signedData": signedData,
	}}
	resp, err := s.rest.Post(ctx,
		"/v1.0/authenticators/"+authenticatorID+"/verifications/"+verificationID,
		body, rest.Options{Bearer: accessToken, ReturnJWT: true})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(resp)
}

func (s *Service) generatePush(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error) {
	return s.GeneratePush(ctx, accessToken, p)
}

// evaluatePush resuelve la verificación: con firma explícita la remite, sin
// firma hace polling del estado.
func (s *Service) evaluatePush(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error) {
	if p.SignedData != "" {
		return s.VerifyPush(ctx, accessToken, p.AuthenticatorID, p.VerificationID, p.SignatureID, p.UserAction, p.SignedData)
	}
	return s.PollPush(ctx, accessToken, p.AuthenticatorID, p.VerificationID)
}
