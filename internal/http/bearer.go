package http

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/introspect"
	"github.com/dropDatabas3/adaptivemfa/internal/observability/logger"
)

// WithBearerGate exige un bearer token activo según el gate de
// introspección. Un token inactivo o de un desafío MFA incompleto (si la
// política lo rechaza) responde 401.
func WithBearerGate(gate *introspect.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if gate == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, http.StatusUnauthorized, "invalid_token", "falta el bearer token", 1401)
				return
			}
			if _, err := gate.Verify(r.Context(), raw); err != nil {
				var tokErr *errs.TokenError
				if errors.As(err, &tokErr) {
					w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
					WriteError(w, http.StatusUnauthorized, "invalid_token", tokErr.Msg, 1401)
					return
				}
				logger.From(r.Context()).Error("introspección falló", logger.Err(err))
				WriteError(w, http.StatusBadGateway, "provider_error", "no se pudo verificar el token", 1502)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
