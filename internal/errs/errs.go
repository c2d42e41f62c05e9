// Package errs define la taxonomía de errores del motor de autenticación.
//
// Cinco familias:
//   - ConfigurationError: setup incompleto, fatal en construcción.
//   - RequestError: el llamador pidió algo que el protocolo no admite.
//   - TransactionError: transacción desconocida/expirada o paso fuera de orden.
//     Recuperable reiniciando el flujo.
//   - TokenError: verificación de bearer token fallida.
//   - StorageError: el store subyacente rechazó una operación.
package errs

import "fmt"

// ConfigurationError indica configuración requerida ausente o inválida.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuración inválida: falta %q", e.Field)
}

// NewConfiguration crea un ConfigurationError para el campo dado.
func NewConfiguration(field string) *ConfigurationError {
	return &ConfigurationError{Field: field}
}

// RequestError indica una operación inválida pedida por el llamador, como
// generar un challenge para un factor que no tiene paso de generación.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return "request: " + e.Msg }

// NewRequest crea un RequestError.
func NewRequest(msg string) *RequestError { return &RequestError{Msg: msg} }

// TransactionError indica una transacción inválida, expirada, o un paso
// de evaluación sin su paso de generación previo.
type TransactionError struct {
	Msg string
	Err error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return "transaction: " + e.Msg + ": " + e.Err.Error()
	}
	return "transaction: " + e.Msg
}

func (e *TransactionError) Unwrap() error { return e.Err }

// NewTransaction crea un TransactionError con mensaje y causa opcional.
func NewTransaction(msg string, err error) *TransactionError {
	return &TransactionError{Msg: msg, Err: err}
}

// TokenError indica que un bearer token no pasó verificación.
type TokenError struct {
	Msg string
}

func (e *TokenError) Error() string { return "token: " + e.Msg }

// NewToken crea un TokenError.
func NewToken(msg string) *TokenError { return &TokenError{Msg: msg} }

// StorageError indica una falla del store subyacente. Fatal para el request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorage crea un StorageError para la operación dada.
func NewStorage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
