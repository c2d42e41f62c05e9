package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/adaptivemfa/internal/adaptive"
	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/policy"
	"github.com/dropDatabas3/adaptivemfa/internal/token"
)

// Server agrupa las dependencias de la capa HTTP.
type Server struct {
	Orchestrator *adaptive.Orchestrator
	Tokens       *token.Client
	Cache        *token.Cache
}

// policyContext arma el contexto de riesgo desde el request: el session id
// lo aporta el user-agent, el resto se toma del transporte.
func policyContext(r *http.Request, sessionID string) policy.Context {
	return policy.Context{
		SessionID: sessionID,
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
}

// POST /v1/assess
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := s.Orchestrator.AssessPolicy(r.Context(), policyContext(r, req.SessionID))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// generateRequest cubre los parámetros de generate de todos los factores.
type generateRequest struct {
	SessionID       string                         `json:"sessionId"`
	EnrolmentID     string                         `json:"enrolmentId"`
	ProfileID       string                         `json:"profileId"`
	AuthenticatorID string                         `json:"authenticatorId"`
	SignatureID     string                         `json:"signatureId"`
	Message         string                         `json:"message"`
	PushMessage     string                         `json:"pushMessage"`
	AdditionalData  []factors.TransactionAttribute `json:"additionalData"`
	RelyingPartyID  string                         `json:"relyingPartyId"`
	UserID          string                         `json:"userId"`
}

// POST /v1/transactions/{transactionID}/factors/{kind}/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	pc := policyContext(r, req.SessionID)
	ch, err := s.Orchestrator.Generate(r.Context(), pc, chi.URLParam(r, "transactionID"), kind, factors.GenerateParams{
		EnrolmentID:     req.EnrolmentID,
		ProfileID:       req.ProfileID,
		AuthenticatorID: req.AuthenticatorID,
		SignatureID:     req.SignatureID,
		Message:         req.Message,
		PushMessage:     req.PushMessage,
		OriginIP:        pc.IPAddress,
		OriginUserAgent: pc.UserAgent,
		AdditionalData:  req.AdditionalData,
		RelyingPartyID:  req.RelyingPartyID,
		UserID:          req.UserID,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ch)
}

// evaluateRequest cubre los parámetros de evaluate de todos los factores.
type evaluateRequest struct {
	SessionID        string              `json:"sessionId"`
	IdentitySourceID string              `json:"identitySourceId"`
	Username         string              `json:"username"`
	Password         string              `json:"password"`
	EnrolmentID      string              `json:"enrolmentId"`
	VerificationID   string              `json:"verificationId"`
	OTP              string              `json:"otp"`
	LSI              string              `json:"lsi"`
	Answers          []factors.Answer    `json:"answers"`
	UserAction       string              `json:"userAction"`
	SignedData       string              `json:"signedData"`
	RelyingPartyID   string              `json:"relyingPartyId"`
	FIDO             *factors.FIDOResult `json:"fido"`
}

// POST /v1/transactions/{transactionID}/factors/{kind}/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := s.Orchestrator.Evaluate(r.Context(), policyContext(r, req.SessionID), chi.URLParam(r, "transactionID"), kind, factors.EvaluateParams{
		IdentitySourceID: req.IdentitySourceID,
		Username:         req.Username,
		Password:         req.Password,
		EnrolmentID:      req.EnrolmentID,
		VerificationID:   req.VerificationID,
		OTP:              req.OTP,
		LSI:              req.LSI,
		Answers:          req.Answers,
		UserAction:       req.UserAction,
		SignedData:       req.SignedData,
		RelyingPartyID:   req.RelyingPartyID,
		FIDO:             req.FIDO,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func parseKind(w http.ResponseWriter, r *http.Request) (factors.Kind, bool) {
	kind, err := factors.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "unknown_factor", err.Error(), 1103)
		return "", false
	}
	return kind, true
}

// GET /v1/transactions/{transactionID}/identitysources?name=
func (s *Server) handleIdentitySources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Orchestrator.LookupIdentitySources(r.Context(), chi.URLParam(r, "transactionID"), r.URL.Query().Get("name"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"identitySources": sources})
}

// POST /v1/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "falta refreshToken", 1104)
		return
	}
	t, err := s.Tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// POST /v1/logout — revoca el access token del usuario en el proveedor. Si
// el token revocado es el de servicio cacheado, el cache también se limpia.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "falta token", 1104)
		return
	}
	var err error
	if s.Cache != nil {
		err = s.Cache.Revoke(r.Context(), req.Token)
	} else {
		err = s.Tokens.Revoke(r.Context(), req.Token)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/userinfo — protegido por el gate de introspección.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	claims, err := s.Tokens.UserInfo(r.Context(), raw)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, claims)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
