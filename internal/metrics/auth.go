package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del flujo de autenticación. Viven en un paquete
// standalone para evitar ciclos de import entre el orquestador y HTTP.

var (
	Assessments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_assessments_total",
		Help: "Evaluaciones de política inicial por resultado",
	}, []string{"result"})

	FactorEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_factor_evaluations_total",
		Help: "Evaluaciones de factores por tipo y resultado",
	}, []string{"factor", "result"})

	TokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_token_refreshes_total",
		Help: "Renovaciones reales del token de servicio contra el proveedor",
	})

	Introspections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_introspections_total",
		Help: "Verificaciones de bearer tokens por origen del resultado",
	}, []string{"outcome"})
)

// Register registra las métricas del flujo en el registry dado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{Assessments, FactorEvaluations, TokenRefreshes, Introspections} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
