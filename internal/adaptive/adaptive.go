// Package adaptive implementa el orquestador de autenticación multifactor:
// la máquina de estados que lleva a un cliente desde la evaluación inicial
// de política, pasando por el primer factor y un eventual segundo factor,
// hasta un token definitivo. Compone el almacén de transacciones, el
// gateway de política y los protocolos de factores.
package adaptive

import (
	"encoding/json"

	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
)

// Status es el estado terminal o intermedio reportado al colaborador HTTP.
type Status string

const (
	// StatusAllow: autenticación completa, Token presente.
	StatusAllow Status = "allow"
	// StatusDeny: la política rechazó el intento. Terminal para el intento,
	// no necesariamente para la transacción.
	StatusDeny Status = "deny"
	// StatusRequires: hacen falta más factores.
	StatusRequires Status = "requires"
	// StatusPending: el factor espera acción fuera de banda (push, QR).
	StatusPending Status = "pending"
)

// AllowedFactor es un tipo de factor permitido por la política en la etapa
// de primer factor.
type AllowedFactor struct {
	Type string `json:"type"`
}

// Result es el resultado de una evaluación de política o de factor.
type Result struct {
	Status          Status              `json:"status"`
	TransactionID   string              `json:"transactionId,omitempty"`
	AllowedFactors  []AllowedFactor     `json:"allowedFactors,omitempty"`
	EnrolledFactors []factors.Enrolment `json:"enrolledFactors,omitempty"`
	Token           *token.Token        `json:"token,omitempty"`

	// Detail trae el cuerpo de error del proveedor en un deny de
	// validación, cuando existe.
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Challenge es el subconjunto seguro de un challenge de factor que se
// devuelve al user-agent. Los secretos internos (ej. el lsi de QR) quedan
// en la transacción y nunca salen.
type Challenge struct {
	TransactionID string             `json:"transactionId"`
	Factor        factors.Kind       `json:"factor"`
	QR            *QRChallenge       `json:"qr,omitempty"`
	Correlation   string             `json:"correlation,omitempty"`
	Questions     []factors.Question `json:"questions,omitempty"`
	FIDO          json.RawMessage    `json:"fido,omitempty"`
}

// QRChallenge es la porción visible de un challenge QR.
type QRChallenge struct {
	Code string `json:"code"`
	ID   string `json:"id"`
	DSI  string `json:"dsi"`
}
