package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/rest"
)

type apiError struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description,omitempty"`
	ErrorCode        int             `json:"error_code,omitempty"`
	RequestID        string          `json:"request_id,omitempty"`
	Detail           json.RawMessage `json:"detail,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorCode:        errCode,
		RequestID:        rid,
	})
}

// WriteDomainError traduce la taxonomía de errores del motor a HTTP:
// operación inválida 400, transacción inválida 404, bearer rechazado 401,
// rechazo del proveedor 400 con el detalle que haya, lo demás 502/500.
func WriteDomainError(w http.ResponseWriter, err error) {
	var rErr *errs.RequestError
	if errors.As(err, &rErr) {
		WriteError(w, http.StatusBadRequest, "invalid_request", rErr.Msg, 1104)
		return
	}
	var tErr *errs.TransactionError
	if errors.As(err, &tErr) {
		WriteError(w, http.StatusNotFound, "transaction_error", tErr.Msg, 1404)
		return
	}
	var tokErr *errs.TokenError
	if errors.As(err, &tokErr) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		WriteError(w, http.StatusUnauthorized, "invalid_token", tokErr.Msg, 1401)
		return
	}
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(apiError{
			Error:     "provider_rejected",
			ErrorCode: 1400,
			RequestID: w.Header().Get("X-Request-ID"),
			Detail:    apiErr.Body,
		})
		return
	}
	var sErr *errs.StorageError
	if errors.As(err, &sErr) {
		WriteError(w, http.StatusInternalServerError, "storage_error", "error interno de almacenamiento", 1500)
		return
	}
	WriteError(w, http.StatusBadGateway, "provider_error", "el proveedor de identidad no respondió", 1502)
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos desconocidos).
// Valida Content-Type y limita el tamaño del body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json", 1102)
		return false
	}
	// máx 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido", 1102)
		return false
	}
	return true
}
