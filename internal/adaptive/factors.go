package adaptive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dropDatabas3/adaptivemfa/internal/codec"
	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/policy"
	"github.com/dropDatabas3/adaptivemfa/internal/transaction"
)

// Generate inicia la verificación de un factor sobre una transacción viva.
// Guarda el estado pendiente en la transacción (pisando cualquier factor
// pendiente anterior: solo uno puede estar en vuelo) y retorna el
// subconjunto del challenge que puede ver el user-agent.
func (o *Orchestrator) Generate(ctx context.Context, pc policy.Context, transactionID string, kind factors.Kind, p factors.GenerateParams) (*Challenge, error) {
	proto, ok := o.factors.Protocol(kind)
	if !ok {
		return nil, errs.NewRequest(fmt.Sprintf("factor desconocido: %s", kind))
	}
	if proto.Generate == nil {
		return nil, errs.NewRequest(fmt.Sprintf("el factor %s no tiene paso de generación", kind))
	}

	rec, err := o.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	ch, err := proto.Generate(ctx, rec.Assessment.AccessToken, p)
	if err != nil {
		return nil, err
	}

	pending := pendingFor(kind, p, ch)
	patch := transaction.Patch{Pending: pending}
	if p.UserID != "" {
		uid := p.UserID
		patch.UserID = &uid
	}
	if err := o.store.Update(ctx, transactionID, patch); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return nil, errs.NewTransaction("la transacción no existe o expiró", err)
		}
		return nil, errs.NewStorage("update", err)
	}

	return safeChallenge(transactionID, kind, ch), nil
}

// Evaluate completa la verificación de un factor y canjea la aserción
// resultante. Para los factores con paso de generación obligatorio
// (OTP transitorios, preguntas, push, FIDO) exige un estado pendiente
// coincidente; password y TOTP no lo necesitan, y QR acepta parámetros
// explícitos como alternativa al estado guardado.
func (o *Orchestrator) Evaluate(ctx context.Context, pc policy.Context, transactionID string, kind factors.Kind, p factors.EvaluateParams) (*Result, error) {
	proto, ok := o.factors.Protocol(kind)
	if !ok {
		return nil, errs.NewRequest(fmt.Sprintf("factor desconocido: %s", kind))
	}

	rec, err := o.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if err := resolvePending(kind, rec.Pending, &p); err != nil {
		return nil, err
	}

	ev, err := proto.Evaluate(ctx, rec.Assessment.AccessToken, p)
	if err != nil {
		return nil, err
	}
	return o.finishEvaluation(ctx, transactionID, rec, pc, kind, ev)
}

// pendingFor arma el estado pendiente a persistir tras un generate.
func pendingFor(kind factors.Kind, p factors.GenerateParams, ch *factors.Challenge) *transaction.PendingFactor {
	pf := &transaction.PendingFactor{Kind: string(kind), VerificationID: ch.ID}
	switch kind {
	case factors.QR:
		pf.DSI = ch.DSI
		pf.LSI = ch.LSI
	case factors.EmailOTP, factors.SMSOTP, factors.VoiceOTP:
		pf.EnrolmentID = p.EnrolmentID
		pf.Correlation = ch.Correlation
	case factors.Questions:
		pf.EnrolmentID = p.EnrolmentID
	case factors.Push:
		pf.AuthenticatorID = p.AuthenticatorID
		pf.SignatureID = ch.SignatureID
	case factors.FIDO:
		pf.RelyingPartyID = p.RelyingPartyID
		pf.FIDO = ch.Raw
	}
	return pf
}

// resolvePending completa los parámetros de evaluación desde el estado
// pendiente de la transacción y valida que exista cuando es obligatorio.
func resolvePending(kind factors.Kind, pending *transaction.PendingFactor, p *factors.EvaluateParams) error {
	matches := pending != nil && pending.Kind == string(kind)

	switch kind {
	case factors.Password, factors.TOTP:
		// Sin paso previo: el código o la contraseña vienen del usuario.
		return nil

	case factors.QR:
		if p.VerificationID != "" && p.LSI != "" {
			return nil
		}
		if !matches {
			return errs.NewTransaction("la transacción no inició una verificación QR", nil)
		}
		p.VerificationID = pending.VerificationID
		p.LSI = pending.LSI
		return nil

	case factors.EmailOTP, factors.SMSOTP, factors.VoiceOTP:
		if !matches {
			return errs.NewTransaction(fmt.Sprintf("la transacción no inició una verificación %s", kind), nil)
		}
		p.EnrolmentID = pending.EnrolmentID
		p.VerificationID = pending.VerificationID
		return nil

	case factors.Questions:
		if !matches {
			return errs.NewTransaction("la transacción no inició una verificación de preguntas", nil)
		}
		p.EnrolmentID = pending.EnrolmentID
		p.VerificationID = pending.VerificationID
		return nil

	case factors.Push:
		if !matches {
			return errs.NewTransaction("la transacción no inició una verificación push", nil)
		}
		p.AuthenticatorID = pending.AuthenticatorID
		p.VerificationID = pending.VerificationID
		if p.SignatureID == "" {
			p.SignatureID = pending.SignatureID
		}
		return nil

	case factors.FIDO:
		if !matches {
			return errs.NewTransaction("la transacción no inició una verificación FIDO", nil)
		}
		if p.RelyingPartyID == "" {
			p.RelyingPartyID = pending.RelyingPartyID
		}
		// El user-agent manda solo la firma; el client data y la credencial
		// salen de las opciones de aserción guardadas por el generate.
		if p.FIDO != nil && len(pending.FIDO) > 0 {
			if p.FIDO.ClientDataJSON == "" {
				p.FIDO.ClientDataJSON = codec.EncodeBytes(pending.FIDO)
			}
			if p.FIDO.CredentialID == "" {
				p.FIDO.CredentialID = firstAllowedCredential(pending.FIDO)
			}
		}
		return nil
	}
	return fmt.Errorf("adaptive: factor desconocido: %s", kind)
}

// firstAllowedCredential extrae el id de la primera credencial de las
// opciones de aserción que devolvió el relying party.
func firstAllowedCredential(raw json.RawMessage) string {
	var opts struct {
		AllowCredentials []struct {
			ID string `json:"id"`
		} `json:"allowCredentials"`
	}
	if err := json.Unmarshal(raw, &opts); err != nil || len(opts.AllowCredentials) == 0 {
		return ""
	}
	return opts.AllowCredentials[0].ID
}

// safeChallenge recorta el challenge a lo que puede viajar al user-agent.
func safeChallenge(transactionID string, kind factors.Kind, ch *factors.Challenge) *Challenge {
	out := &Challenge{TransactionID: transactionID, Factor: kind}
	switch kind {
	case factors.QR:
		out.QR = &QRChallenge{Code: ch.QRCode, ID: ch.ID, DSI: ch.DSI}
	case factors.EmailOTP, factors.SMSOTP, factors.VoiceOTP:
		out.Correlation = ch.Correlation
	case factors.Questions:
		out.Questions = ch.Questions
	case factors.FIDO:
		out.FIDO = ch.Raw
	}
	return out
}
