// Package transaction implementa el almacén de transacciones de
// autenticación en curso. Cada transacción nace en la evaluación inicial de
// política y muere al completarse el login o al vencer su TTL absoluto.
package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/adaptivemfa/internal/policy"
)

// DefaultTTL es la vida máxima de una transacción. El TTL es absoluto:
// leer o actualizar la transacción NO lo renueva.
const DefaultTTL = 600 * time.Second

// ErrNotFound cubre tanto transacciones inexistentes como vencidas; el
// llamador no puede distinguirlas.
var ErrNotFound = errors.New("transaction: no existe o expiró")

// PendingFactor guarda el estado de una verificación de factor iniciada y
// aún no evaluada. Los campos poblados dependen del tipo de factor.
type PendingFactor struct {
	Kind            string          `json:"kind"`
	EnrolmentID     string          `json:"enrolmentId,omitempty"`
	VerificationID  string          `json:"verificationId,omitempty"`
	Correlation     string          `json:"correlation,omitempty"`
	DSI             string          `json:"dsi,omitempty"`
	LSI             string          `json:"lsi,omitempty"`
	AuthenticatorID string          `json:"authenticatorId,omitempty"`
	SignatureID     string          `json:"signatureId,omitempty"`
	RelyingPartyID  string          `json:"relyingPartyId,omitempty"`
	FIDO            json.RawMessage `json:"fido,omitempty"`
}

// Record es el estado de una transacción de autenticación.
type Record struct {
	Assessment *policy.Assessment `json:"assessment"`
	UserID     string             `json:"userId,omitempty"`
	Pending    *PendingFactor     `json:"pending,omitempty"`
}

// Patch describe una actualización shallow-merge: solo los campos no-nil
// se aplican sobre el record existente.
type Patch struct {
	Assessment *policy.Assessment
	UserID     *string
	Pending    *PendingFactor

	// ClearPending borra el factor pendiente; tiene prioridad sobre Pending.
	ClearPending bool
}

func (p Patch) apply(r *Record) {
	if p.Assessment != nil {
		r.Assessment = p.Assessment
	}
	if p.UserID != nil {
		r.UserID = *p.UserID
	}
	switch {
	case p.ClearPending:
		r.Pending = nil
	case p.Pending != nil:
		r.Pending = p.Pending
	}
}

// Store es el contrato del almacén de transacciones.
type Store interface {
	// Create guarda el record y retorna el ID generado.
	Create(ctx context.Context, r *Record) (string, error)

	// Get retorna el record, o ErrNotFound si no existe o expiró.
	Get(ctx context.Context, id string) (*Record, error)

	// Update aplica el patch sin renovar el TTL. ErrNotFound si no existe.
	Update(ctx context.Context, id string, p Patch) error

	// Delete elimina el record. ErrNotFound si ya no existe: borrar dos
	// veces es un bug del llamador, no un no-op.
	Delete(ctx context.Context, id string) error
}
