package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/adaptivemfa/internal/introspect"
	"github.com/dropDatabas3/adaptivemfa/internal/rate"
)

// NewRouter arma el router completo: middlewares globales, el flujo de
// autenticación adaptativa y los endpoints protegidos por el gate.
func NewRouter(s *Server, gate *introspect.Gate, limiter rate.Limiter, reg prometheus.Registerer) (stdhttp.Handler, error) {
	metricsHandler, err := RegisterMetrics(reg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(WithRecover)
	r.Use(WithSecurityHeaders)
	r.Use(WithLogging)
	r.Use(WithMetrics)
	r.Use(WithRateLimit(limiter))

	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		WriteJSON(w, stdhttp.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(stdhttp.MethodGet, "/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/assess", s.handleAssess)
		r.Route("/transactions/{transactionID}", func(r chi.Router) {
			r.Get("/identitysources", s.handleIdentitySources)
			r.Route("/factors/{kind}", func(r chi.Router) {
				r.Post("/generate", s.handleGenerate)
				r.Post("/evaluate", s.handleEvaluate)
			})
		})
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		// Recursos que exigen un bearer token ya emitido.
		r.Group(func(r chi.Router) {
			r.Use(WithBearerGate(gate))
			r.Get("/userinfo", s.handleUserInfo)
		})
	})

	return r, nil
}
