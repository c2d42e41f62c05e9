// Package factors implementa los clientes de verificación de factores del
// proveedor: password, QR, TOTP, OTP por email/SMS/voz, preguntas de
// conocimiento, push y FIDO2. Cada verificación completada produce una
// aserción JWT que luego se canjea contra el motor de política.
package factors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

// Kind identifica un tipo de factor. El conjunto es cerrado: el proveedor
// no admite factores arbitrarios.
type Kind string

const (
	Password  Kind = "password"
	QR        Kind = "qr"
	TOTP      Kind = "totp"
	EmailOTP  Kind = "emailotp"
	SMSOTP    Kind = "smsotp"
	VoiceOTP  Kind = "voiceotp"
	Questions Kind = "questions"
	Push      Kind = "push"
	FIDO      Kind = "fido"
)

// Kinds lista todos los tipos de factor soportados.
var Kinds = []Kind{Password, QR, TOTP, EmailOTP, SMSOTP, VoiceOTP, Questions, Push, FIDO}

// ParseKind valida y normaliza un tipo de factor recibido por la API.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	for _, v := range Kinds {
		if k == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("factors: tipo de factor desconocido: %q", s)
}

// Question es una pregunta de conocimiento a responder.
type Question struct {
	QuestionKey string `json:"questionKey"`
	Question    string `json:"question"`
}

// Answer es la respuesta del usuario a una pregunta de conocimiento.
type Answer struct {
	QuestionKey string `json:"questionKey"`
	Answer      string `json:"answer"`
}

// Challenge es el resultado de iniciar una verificación (paso generate).
// Los campos poblados dependen del factor; Raw conserva la respuesta
// completa del proveedor.
type Challenge struct {
	ID          string          `json:"id,omitempty"`
	Correlation string          `json:"correlation,omitempty"`
	QRCode      string          `json:"qrCode,omitempty"`
	DSI         string          `json:"dsi,omitempty"`
	LSI         string          `json:"lsi,omitempty"`
	SignatureID string          `json:"signatureId,omitempty"`
	Questions   []Question      `json:"questions,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Evaluation es el resultado de completar una verificación (paso evaluate).
// Assertion vacía con Pending=true significa que el factor sigue esperando
// acción del usuario (QR sin escanear, push sin aprobar).
type Evaluation struct {
	Assertion string          `json:"assertion,omitempty"`
	UserID    string          `json:"id,omitempty"`
	State     string          `json:"state,omitempty"`
	Pending   bool            `json:"-"`
	Raw       json.RawMessage `json:"-"`
}

// GenerateParams agrupa los parámetros de inicio de verificación de todos
// los factores; cada factor usa el subconjunto que le corresponde.
type GenerateParams struct {
	EnrolmentID string // emailotp, smsotp, voiceotp, questions

	ProfileID string // qr

	// push
	AuthenticatorID string
	SignatureID     string
	Message         string
	PushMessage     string
	OriginIP        string
	OriginUserAgent string
	AdditionalData  []TransactionAttribute

	// fido
	RelyingPartyID string
	UserID         string
}

// EvaluateParams agrupa los parámetros de evaluación de todos los factores.
type EvaluateParams struct {
	// password
	IdentitySourceID string
	Username         string
	Password         string

	EnrolmentID    string // totp, emailotp, smsotp, voiceotp, questions
	VerificationID string // otp/questions cuando hubo generate explícito
	OTP            string

	// qr
	LSI string

	Answers []Answer // questions

	// push
	AuthenticatorID string
	SignatureID     string
	UserAction      string
	SignedData      string

	// fido
	RelyingPartyID string
	FIDO           *FIDOResult
}

// Protocol es la tabla de operaciones de un factor. Generate es nil para
// los factores sin paso de inicio (password, totp, fido directo).
type Protocol struct {
	Generate func(ctx context.Context, accessToken string, p GenerateParams) (*Challenge, error)
	Evaluate func(ctx context.Context, accessToken string, p EvaluateParams) (*Evaluation, error)
}

// Service habla con los endpoints de factores del tenant. Todas las
// operaciones autentican con el access token del assessment vigente.
type Service struct {
	rest *rest.Client
}

// NewService crea el cliente de factores.
func NewService(rc *rest.Client) *Service {
	return &Service{rest: rc}
}

// Protocol retorna la tabla de operaciones del factor, o false si el tipo
// no existe.
func (s *Service) Protocol(k Kind) (Protocol, bool) {
	switch k {
	case Password:
		return Protocol{Evaluate: s.evaluatePassword}, true
	case QR:
		return Protocol{Generate: s.generateQR, Evaluate: s.evaluateQR}, true
	case TOTP:
		return Protocol{Evaluate: s.evaluateTOTP}, true
	case EmailOTP, SMSOTP, VoiceOTP:
		kind := k
		return Protocol{
			Generate: func(ctx context.Context, tok string, p GenerateParams) (*Challenge, error) {
				return s.GenerateOTP(ctx, tok, kind, p.EnrolmentID)
			},
			Evaluate: func(ctx context.Context, tok string, p EvaluateParams) (*Evaluation, error) {
				return s.VerifyOTP(ctx, tok, kind, p.EnrolmentID, p.VerificationID, p.OTP)
			},
		}, true
	case Questions:
		return Protocol{Generate: s.generateQuestions, Evaluate: s.evaluateQuestions}, true
	case Push:
		return Protocol{Generate: s.generatePush, Evaluate: s.evaluatePush}, true
	case FIDO:
		return Protocol{Generate: s.generateFIDO, Evaluate: s.evaluateFIDO}, true
	default:
		return Protocol{}, false
	}
}

// decodeEvaluation parsea la respuesta de un evaluate con returnJwt.
func decodeEvaluation(resp *rest.Response) (*Evaluation, error) {
	var ev Evaluation
	if err := resp.Decode(&ev); err != nil {
		return nil, err
	}
	ev.Raw = resp.Data
	return &ev, nil
}
