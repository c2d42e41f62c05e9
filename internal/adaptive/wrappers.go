package adaptive

import (
	"context"

	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/policy"
)

// Wrappers tipados sobre Generate/Evaluate, uno por operación del flujo.
// El route layer genérico usa Generate/Evaluate directo; estos existen para
// los colaboradores que arman flujos concretos en código.

// EvaluatePassword intenta el primer factor de usuario y contraseña.
func (o *Orchestrator) EvaluatePassword(ctx context.Context, pc policy.Context, transactionID, identitySourceID, username, password string) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.Password, factors.EvaluateParams{
		IdentitySourceID: identitySourceID,
		Username:         username,
		Password:         password,
	})
}

// GenerateQR inicia un login por código QR.
func (o *Orchestrator) GenerateQR(ctx context.Context, pc policy.Context, transactionID, profileID string) (*Challenge, error) {
	return o.Generate(ctx, pc, transactionID, factors.QR, factors.GenerateParams{ProfileID: profileID})
}

// EvaluateQR consulta un login QR. Con verificationID y lsi vacíos usa el
// estado pendiente de la transacción.
func (o *Orchestrator) EvaluateQR(ctx context.Context, pc policy.Context, transactionID, verificationID, lsi string) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.QR, factors.EvaluateParams{
		VerificationID: verificationID,
		LSI:            lsi,
	})
}

// EvaluateTOTP verifica un código TOTP de segundo factor.
func (o *Orchestrator) EvaluateTOTP(ctx context.Context, pc policy.Context, transactionID, enrolmentID, otp string) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.TOTP, factors.EvaluateParams{
		EnrolmentID: enrolmentID,
		OTP:         otp,
	})
}

// GenerateOTP dispara el envío de un OTP transitorio (email, SMS o voz).
func (o *Orchestrator) GenerateOTP(ctx context.Context, pc policy.Context, transactionID string, kind factors.Kind, enrolmentID string) (*Challenge, error) {
	return o.Generate(ctx, pc, transactionID, kind, factors.GenerateParams{EnrolmentID: enrolmentID})
}

// EvaluateOTP verifica el OTP recibido por el canal del enrolment.
func (o *Orchestrator) EvaluateOTP(ctx context.Context, pc policy.Context, transactionID string, kind factors.Kind, otp string) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, kind, factors.EvaluateParams{OTP: otp})
}

// GenerateQuestions inicia la verificación de preguntas de conocimiento.
func (o *Orchestrator) GenerateQuestions(ctx context.Context, pc policy.Context, transactionID, enrolmentID string) (*Challenge, error) {
	return o.Generate(ctx, pc, transactionID, factors.Questions, factors.GenerateParams{EnrolmentID: enrolmentID})
}

// EvaluateQuestions verifica las respuestas del usuario.
func (o *Orchestrator) EvaluateQuestions(ctx context.Context, pc policy.Context, transactionID string, answers []factors.Answer) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.Questions, factors.EvaluateParams{Answers: answers})
}

// GeneratePush envía la notificación push al autenticador del usuario.
func (o *Orchestrator) GeneratePush(ctx context.Context, pc policy.Context, transactionID string, p factors.GenerateParams) (*Challenge, error) {
	return o.Generate(ctx, pc, transactionID, factors.Push, p)
}

// EvaluatePush consulta el estado de la verificación push. Mientras el
// usuario no responda retorna pending sin tocar la transacción.
func (o *Orchestrator) EvaluatePush(ctx context.Context, pc policy.Context, transactionID, userAction, signedData string) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.Push, factors.EvaluateParams{
		UserAction: userAction,
		SignedData: signedData,
	})
}

// GenerateFIDO pide las opciones de aserción WebAuthn.
func (o *Orchestrator) GenerateFIDO(ctx context.Context, pc policy.Context, transactionID, relyingPartyID, userID string) (*Challenge, error) {
	return o.Generate(ctx, pc, transactionID, factors.FIDO, factors.GenerateParams{
		RelyingPartyID: relyingPartyID,
		UserID:         userID,
	})
}

// EvaluateFIDO remite el resultado WebAuthn del user-agent.
func (o *Orchestrator) EvaluateFIDO(ctx context.Context, pc policy.Context, transactionID, relyingPartyID string, r factors.FIDOResult) (*Result, error) {
	return o.Evaluate(ctx, pc, transactionID, factors.FIDO, factors.EvaluateParams{
		RelyingPartyID: relyingPartyID,
		FIDO:           &r,
	})
}

// LookupIdentitySources resuelve las fuentes de identidad de password
// usando el token del assessment de la transacción.
func (o *Orchestrator) LookupIdentitySources(ctx context.Context, transactionID, name string) ([]factors.IdentitySource, error) {
	rec, err := o.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return o.factors.LookupIdentitySources(ctx, rec.Assessment.AccessToken, name)
}
