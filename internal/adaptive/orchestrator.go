package adaptive

import (
	"context"
	"errors"

	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/metrics"
	"github.com/dropDatabas3/adaptivemfa/internal/observability/logger"
	"github.com/dropDatabas3/adaptivemfa/internal/policy"
	"github.com/dropDatabas3/adaptivemfa/internal/rest"
	"github.com/dropDatabas3/adaptivemfa/internal/transaction"
)

// Config son las credenciales y el tenant del proveedor de identidad.
type Config struct {
	TenantURL    string
	ClientID     string
	ClientSecret string
}

// Orchestrator es la máquina de estados de autenticación. Es seguro para
// uso concurrente; el estado por intento vive en el Store.
type Orchestrator struct {
	store   transaction.Store
	gateway *policy.Gateway
	factors *factors.Service
}

// New valida la configuración y construye el orquestador. El store es
// inyectado para poder sustituir memoria por redis sin tocar esta capa.
func New(cfg Config, store transaction.Store) (*Orchestrator, error) {
	switch {
	case cfg.TenantURL == "":
		return nil, errs.NewConfiguration("tenantUrl")
	case cfg.ClientID == "":
		return nil, errs.NewConfiguration("clientId")
	case cfg.ClientSecret == "":
		return nil, errs.NewConfiguration("clientSecret")
	case store == nil:
		return nil, errs.NewConfiguration("transactionStore")
	}
	rc := rest.New(cfg.TenantURL)
	return &Orchestrator{
		store:   store,
		gateway: policy.NewGateway(rc, cfg.ClientID, cfg.ClientSecret),
		factors: factors.NewService(rc),
	}, nil
}

// NewWithClients construye el orquestador con colaboradores ya armados.
// Lo usan los tests para apuntar a un proveedor fake.
func NewWithClients(store transaction.Store, gw *policy.Gateway, fs *factors.Service) *Orchestrator {
	return &Orchestrator{store: store, gateway: gw, factors: fs}
}

// AssessPolicy corre la evaluación inicial de riesgo. Un rechazo del
// proveedor se reporta como deny sin distinguirlo de un error de política:
// no se filtran internals del motor de riesgo al user-agent.
func (o *Orchestrator) AssessPolicy(ctx context.Context, pc policy.Context) (*Result, error) {
	log := logger.From(ctx)

	assessment, err := o.gateway.Assess(ctx, pc)
	if err != nil {
		if _, denied := policy.Denied(err); !denied {
			// 5xx o falla de red: el intento falló, no fue denegado.
			metrics.Assessments.WithLabelValues("error").Inc()
			return nil, err
		}
		log.Info("política denegó el acceso inicial", logger.SessionID(pc.SessionID))
		metrics.Assessments.WithLabelValues("deny").Inc()
		return &Result{Status: StatusDeny}, nil
	}

	id, err := o.store.Create(ctx, &transaction.Record{Assessment: assessment})
	if err != nil {
		return nil, errs.NewStorage("create", err)
	}

	allowed := make([]AllowedFactor, 0, len(assessment.AllowedFactors))
	for _, f := range assessment.AllowedFactors {
		allowed = append(allowed, AllowedFactor{Type: f})
	}
	log.Info("transacción creada",
		logger.TransactionID(id),
		logger.Count(len(allowed)))
	metrics.Assessments.WithLabelValues("requires").Inc()
	return &Result{Status: StatusRequires, TransactionID: id, AllowedFactors: allowed}, nil
}

// GetToken retorna el access token del assessment vigente de la
// transacción. errs.TransactionError si la transacción no existe o expiró.
func (o *Orchestrator) GetToken(ctx context.Context, transactionID string) (string, error) {
	rec, err := o.load(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return rec.Assessment.AccessToken, nil
}

// load trae la transacción traduciendo NotFound del store al error de
// dominio que ve el colaborador.
func (o *Orchestrator) load(ctx context.Context, id string) (*transaction.Record, error) {
	rec, err := o.store.Get(ctx, id)
	if errors.Is(err, transaction.ErrNotFound) {
		return nil, errs.NewTransaction("la transacción no existe o expiró", err)
	}
	if err != nil {
		return nil, errs.NewStorage("get", err)
	}
	return rec, nil
}

// validateAssertion es la transición compartida de la máquina de estados:
// canjea la aserción de un factor completado contra el motor de política y
// decide allow, deny o requires.
//
// En deny la transacción se conserva: puede reintentarse con otro factor
// hasta que venza el TTL. En allow se elimina tras extraer el token.
func (o *Orchestrator) validateAssertion(ctx context.Context, transactionID, accessToken string, pc policy.Context, assertion, userID string) (*Result, error) {
	log := logger.From(ctx)

	assessment, err := o.gateway.Validate(ctx, accessToken, assertion, pc)
	if err != nil {
		apiErr, denied := policy.Denied(err)
		if !denied {
			return nil, err
		}
		log.Info("validación de aserción denegada", logger.TransactionID(transactionID))
		res := &Result{Status: StatusDeny}
		if apiErr != nil && len(apiErr.Body) > 0 {
			res.Detail = apiErr.Body
		}
		return res, nil
	}

	if !assessment.Requires() {
		// Allow definitivo: se entrega el token y la transacción muere.
		if err := o.store.Delete(ctx, transactionID); err != nil && !errors.Is(err, transaction.ErrNotFound) {
			return nil, errs.NewStorage("delete", err)
		}
		log.Info("autenticación completa", logger.TransactionID(transactionID), logger.UserID(userID))
		return &Result{Status: StatusAllow, Token: &assessment.Token}, nil
	}

	// Hace falta un segundo factor: persistir el nuevo assessment y ofrecer
	// los enrolments del usuario filtrados a los tipos permitidos.
	patch := transaction.Patch{Assessment: assessment}
	if userID != "" {
		patch.UserID = &userID
	}
	if err := o.store.Update(ctx, transactionID, patch); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return nil, errs.NewTransaction("la transacción no existe o expiró", err)
		}
		return nil, errs.NewStorage("update", err)
	}

	enrolments, err := o.factors.Enrolments(ctx, assessment.AccessToken, userID)
	if err != nil {
		return nil, err
	}
	enrolled := filterEnrolments(enrolments, assessment.AllowedFactors)

	log.Info("se requiere segundo factor",
		logger.TransactionID(transactionID),
		logger.Count(len(enrolled)))
	return &Result{Status: StatusRequires, TransactionID: transactionID, EnrolledFactors: enrolled}, nil
}

// filterEnrolments intersecta enrolments con los tipos permitidos
// preservando el orden de los enrolments: ese orden decide qué factor se
// ofrece primero cuando la UI auto-avanza con un único match.
func filterEnrolments(enrolments []factors.Enrolment, allowed []string) []factors.Enrolment {
	allowedSet := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = true
	}
	out := make([]factors.Enrolment, 0, len(enrolments))
	for _, e := range enrolments {
		if allowedSet[e.Type] {
			out = append(out, e)
		}
	}
	return out
}

// finishEvaluation procesa el resultado de un evaluate de factor: pendiente
// fuera de banda, o canje de la aserción resultante.
func (o *Orchestrator) finishEvaluation(ctx context.Context, transactionID string, rec *transaction.Record, pc policy.Context, kind factors.Kind, ev *factors.Evaluation) (*Result, error) {
	if ev.Pending {
		metrics.FactorEvaluations.WithLabelValues(string(kind), "pending").Inc()
		return &Result{Status: StatusPending, TransactionID: transactionID}, nil
	}

	userID := rec.UserID
	if ev.UserID != "" {
		userID = ev.UserID
	}

	res, err := o.validateAssertion(ctx, transactionID, rec.Assessment.AccessToken, pc, ev.Assertion, userID)
	if err != nil {
		metrics.FactorEvaluations.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}
	metrics.FactorEvaluations.WithLabelValues(string(kind), string(res.Status)).Inc()
	return res, nil
}
