package adaptive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dropDatabas3/adaptivemfa/internal/codec"
	"github.com/dropDatabas3/adaptivemfa/internal/errs"
	"github.com/dropDatabas3/adaptivemfa/internal/factors"
	"github.com/dropDatabas3/adaptivemfa/internal/policy"
	"github.com/dropDatabas3/adaptivemfa/internal/rest"
	"github.com/dropDatabas3/adaptivemfa/internal/transaction"
)

// fakeProvider simula el tenant del proveedor de identidad. Los flags
// controlan el comportamiento por test.
type fakeProvider struct {
	denyAssess     bool     // policyauth retorna 400
	requireAfter   []string // allowedFactors en la respuesta del jwt-bearer
	pushApproved   bool     // el poll de push retorna aserción en vez de PENDING
	otpGenerations int

	// lo que recibió el endpoint de resultado FIDO
	fidoCredential string
	fidoClientData string
}

const (
	goodAssertion  = "assert-ok"
	firstAssertion = "assert-first"
)

// fidoOptions son las opciones de aserción que sirve el relying party fake,
// byte a byte: el evaluate debe mandarlas de vuelta como client data.
const fidoOptions = `{"rpId":"rp-1","challenge":"Y2hhbGxlbmdl","timeout":30000,"allowCredentials":[{"type":"public-key","id":"cred-1"}],"userVerification":"preferred"}`

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()

	// Endpoint de tokens: policyauth y jwt-bearer comparten path.
	mux.HandleFunc("POST /v1.0/endpoint/default/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.PostForm.Get("grant_type") {
		case "policyauth":
			if f.denyAssess {
				writeJSON(w, 400, map[string]string{"messageId": "CSIAQ0298E", "messageDescription": "acceso denegado"})
				return
			}
			if r.PostForm.Get("sessionId") == "" {
				writeJSON(w, 400, map[string]string{"messageDescription": "falta sessionId"})
				return
			}
			writeJSON(w, 200, map[string]any{
				"access_token":   "assess-token",
				"token_type":     "Bearer",
				"expires_in":     3600,
				"allowedFactors": []string{"password", "qr"},
			})
		case "urn:ietf:params:oauth:grant-type:jwt-bearer":
			if r.Header.Get("Authorization") != "Bearer assess-token" {
				writeJSON(w, 401, map[string]string{"messageDescription": "token inválido"})
				return
			}
			switch r.PostForm.Get("assertion") {
			case goodAssertion:
				writeJSON(w, 200, map[string]any{
					"access_token":  "final-token",
					"refresh_token": "final-refresh",
					"token_type":    "Bearer",
					"expires_in":    7200,
				})
			case firstAssertion:
				writeJSON(w, 200, map[string]any{
					"access_token":   "assess-token", // assessment renovado
					"token_type":     "Bearer",
					"expires_in":     3600,
					"allowedFactors": f.requireAfter,
				})
			default:
				writeJSON(w, 400, map[string]string{"messageId": "CSIAQ0300E", "messageDescription": "aserción rechazada"})
			}
		default:
			writeJSON(w, 400, map[string]string{"messageDescription": "grant desconocido"})
		}
	})

	// Primer factor password.
	mux.HandleFunc("POST /v1.0/authnmethods/password/src-1", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Username != "jdoe" || body.Password != "s3cret" {
			writeJSON(w, 400, map[string]string{"messageDescription": "credenciales inválidas"})
			return
		}
		assertion := goodAssertion
		if len(f.requireAfter) > 0 {
			assertion = firstAssertion
		}
		writeJSON(w, 200, map[string]string{"id": "user-1", "assertion": assertion})
	})

	// Enrolments del usuario.
	mux.HandleFunc("GET /v2.0/factors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"factors": []map[string]any{
			{"id": "enr-totp", "userId": "user-1", "type": "totp", "enabled": true},
			{"id": "enr-email", "userId": "user-1", "type": "emailotp", "enabled": true},
			{"id": "enr-fido", "userId": "user-1", "type": "fido2", "enabled": true},
		}})
	})

	// OTP por email.
	mux.HandleFunc("POST /v2.0/factors/emailotp/enr-email/verifications", func(w http.ResponseWriter, r *http.Request) {
		f.otpGenerations++
		writeJSON(w, 200, map[string]string{"id": "ver-otp", "correlation": "1234"})
	})
	mux.HandleFunc("POST /v2.0/factors/emailotp/enr-email/verifications/ver-otp", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ OTP string `json:"otp"` }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.OTP != "123456" {
			writeJSON(w, 400, map[string]string{"messageDescription": "otp incorrecto"})
			return
		}
		writeJSON(w, 200, map[string]string{"assertion": goodAssertion})
	})

	// Push.
	mux.HandleFunc("POST /v1.0/authenticators/auth-1/verifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"id": "ver-push"})
	})
	mux.HandleFunc("GET /v1.0/authenticators/auth-1/verifications/ver-push", func(w http.ResponseWriter, r *http.Request) {
		if !f.pushApproved {
			writeJSON(w, 200, map[string]string{"state": "PENDING"})
			return
		}
		writeJSON(w, 200, map[string]string{"state": "VERIFY_SUCCESS", "assertion": goodAssertion})
	})

	// FIDO2.
	mux.HandleFunc("POST /v2.0/factors/fido2/relyingparties/rp-1/assertion/options", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fidoOptions))
	})
	mux.HandleFunc("POST /v2.0/factors/fido2/relyingparties/rp-1/assertion/result", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID       string `json:"id"`
			Response struct {
				ClientDataJSON string `json:"clientDataJSON"`
				Signature      string `json:"signature"`
			} `json:"response"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.fidoCredential = body.ID
		f.fidoClientData = body.Response.ClientDataJSON
		if body.ID == "" || body.Response.ClientDataJSON == "" || body.Response.Signature == "" {
			writeJSON(w, 400, map[string]string{"messageDescription": "aserción incompleta"})
			return
		}
		writeJSON(w, 200, map[string]string{"assertion": goodAssertion})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestOrchestrator levanta el proveedor fake y arma el orquestador
// apuntándole, con un store en memoria.
func newTestOrchestrator(t *testing.T, f *fakeProvider) (*Orchestrator, transaction.Store) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	rc := rest.New(srv.URL)
	store := transaction.NewMemoryStore(0)
	return NewWithClients(store, policy.NewGateway(rc, "cid", "csecret"), factors.NewService(rc)), store
}

func testPolicyContext() policy.Context {
	return policy.Context{SessionID: "sess-1", UserAgent: "test-agent", IPAddress: "203.0.113.7"}
}

func TestAssessDenied(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{denyAssess: true})

	res, err := o.AssessPolicy(context.Background(), testPolicyContext())
	if err != nil {
		t.Fatalf("AssessPolicy err: %v", err)
	}
	// un 4xx del motor de riesgo es deny, no error
	if res.Status != StatusDeny {
		t.Fatalf("status: got %q want %q", res.Status, StatusDeny)
	}
	if res.TransactionID != "" {
		t.Fatal("un deny no debe crear transacción")
	}
}

func TestAssessRequiresFactors(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{})

	res, err := o.AssessPolicy(context.Background(), testPolicyContext())
	if err != nil {
		t.Fatalf("AssessPolicy err: %v", err)
	}
	if res.Status != StatusRequires {
		t.Fatalf("status: got %q want %q", res.Status, StatusRequires)
	}
	if res.TransactionID == "" {
		t.Fatal("falta transactionId")
	}
	if len(res.AllowedFactors) != 2 || res.AllowedFactors[0].Type != "password" {
		t.Fatalf("allowedFactors: %+v", res.AllowedFactors)
	}

	tok, err := o.GetToken(context.Background(), res.TransactionID)
	if err != nil {
		t.Fatalf("GetToken err: %v", err)
	}
	if tok != "assess-token" {
		t.Fatalf("GetToken: got %q", tok)
	}
}

func TestEvaluateUnknownTransaction(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{})

	_, err := o.EvaluatePassword(context.Background(), testPolicyContext(), "no-existe", "src-1", "jdoe", "s3cret")
	var txnErr *errs.TransactionError
	if !errors.As(err, &txnErr) {
		t.Fatalf("esperaba TransactionError, got %v", err)
	}
}

func TestPasswordDenyKeepsTransaction(t *testing.T) {
	f := &fakeProvider{}
	o, _ := newTestOrchestrator(t, f)
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)
	txn := res.TransactionID

	// credenciales malas: el proveedor rechaza el authn con 4xx y eso se
	// propaga como error del evaluate, no como deny
	_, err := o.EvaluatePassword(ctx, pc, txn, "src-1", "jdoe", "incorrecta")
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsClientError() {
		t.Fatalf("esperaba APIError 4xx, got %v", err)
	}

	// la transacción sobrevive y el reintento con credenciales buenas anda
	final, err := o.EvaluatePassword(ctx, pc, txn, "src-1", "jdoe", "s3cret")
	if err != nil {
		t.Fatalf("reintento err: %v", err)
	}
	if final.Status != StatusAllow {
		t.Fatalf("status: got %q want %q", final.Status, StatusAllow)
	}
	if final.Token == nil || final.Token.AccessToken != "final-token" {
		t.Fatalf("token final: %+v", final.Token)
	}

	// tras el allow la transacción ya no existe
	if _, err := o.GetToken(ctx, txn); err == nil {
		t.Fatal("la transacción debía eliminarse tras el allow")
	}
}

func TestAssertionRejectedIsDeny(t *testing.T) {
	f := &fakeProvider{}
	o, _ := newTestOrchestrator(t, f)
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)
	txn := res.TransactionID

	// el motor de política rechaza la aserción: deny, y la transacción
	// queda viva para otro intento
	dres, err := o.validateAssertion(ctx, txn, "assess-token", pc, "assert-malo", "user-1")
	if err != nil {
		t.Fatalf("validateAssertion err: %v", err)
	}
	if dres.Status != StatusDeny {
		t.Fatalf("status: got %q want %q", dres.Status, StatusDeny)
	}
	if len(dres.Detail) == 0 {
		t.Fatal("el deny debía traer el detalle del proveedor")
	}
	if _, err := o.GetToken(ctx, txn); err != nil {
		t.Fatalf("la transacción debía sobrevivir al deny: %v", err)
	}
}

func TestSecondFactorFlow(t *testing.T) {
	f := &fakeProvider{requireAfter: []string{"emailotp", "totp"}}
	o, _ := newTestOrchestrator(t, f)
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)
	txn := res.TransactionID

	// el password pasa pero el motor exige segundo factor
	step, err := o.EvaluatePassword(ctx, pc, txn, "src-1", "jdoe", "s3cret")
	if err != nil {
		t.Fatalf("EvaluatePassword err: %v", err)
	}
	if step.Status != StatusRequires {
		t.Fatalf("status: got %q want %q", step.Status, StatusRequires)
	}
	// los enrolments se filtran a los tipos permitidos preservando su orden:
	// fido2 no está permitido y totp viene después de emailotp
	if len(step.EnrolledFactors) != 2 {
		t.Fatalf("enrolledFactors: %+v", step.EnrolledFactors)
	}
	if step.EnrolledFactors[0].Type != "totp" || step.EnrolledFactors[1].Type != "emailotp" {
		t.Fatalf("orden de enrolments: %+v", step.EnrolledFactors)
	}

	// evaluar emailotp sin generate previo es un error de transacción
	f.requireAfter = nil // el segundo validate ya debe dar allow
	if _, err := o.EvaluateOTP(ctx, pc, txn, factors.EmailOTP, "123456"); err == nil {
		t.Fatal("esperaba error sin verificación pendiente")
	} else {
		var txnErr *errs.TransactionError
		if !errors.As(err, &txnErr) {
			t.Fatalf("esperaba TransactionError, got %v", err)
		}
	}

	// generate + evaluate del OTP cierra el flujo
	ch, err := o.GenerateOTP(ctx, pc, txn, factors.EmailOTP, "enr-email")
	if err != nil {
		t.Fatalf("GenerateOTP err: %v", err)
	}
	if ch.Correlation != "1234" {
		t.Fatalf("correlation: got %q", ch.Correlation)
	}
	if f.otpGenerations != 1 {
		t.Fatalf("otpGenerations: %d", f.otpGenerations)
	}

	final, err := o.EvaluateOTP(ctx, pc, txn, factors.EmailOTP, "123456")
	if err != nil {
		t.Fatalf("EvaluateOTP err: %v", err)
	}
	if final.Status != StatusAllow || final.Token == nil {
		t.Fatalf("resultado final: %+v", final)
	}
}

func TestPushPendingThenApproved(t *testing.T) {
	f := &fakeProvider{}
	o, _ := newTestOrchestrator(t, f)
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)
	txn := res.TransactionID

	if _, err := o.GeneratePush(ctx, pc, txn, factors.GenerateParams{
		AuthenticatorID: "auth-1",
		SignatureID:     "sig-1",
		Message:         "login desde un dispositivo nuevo",
	}); err != nil {
		t.Fatalf("GeneratePush err: %v", err)
	}

	// el usuario aún no respondió: pending, sin tocar la transacción
	pend, err := o.EvaluatePush(ctx, pc, txn, "", "")
	if err != nil {
		t.Fatalf("EvaluatePush err: %v", err)
	}
	if pend.Status != StatusPending {
		t.Fatalf("status: got %q want %q", pend.Status, StatusPending)
	}
	if _, err := o.GetToken(ctx, txn); err != nil {
		t.Fatalf("pending no debe consumir la transacción: %v", err)
	}

	// el usuario aprueba en el autenticador y el siguiente poll cierra
	f.pushApproved = true
	final, err := o.EvaluatePush(ctx, pc, txn, "", "")
	if err != nil {
		t.Fatalf("EvaluatePush aprobado err: %v", err)
	}
	if final.Status != StatusAllow || final.Token == nil {
		t.Fatalf("resultado final: %+v", final)
	}
}

func TestFIDOEvaluateUsesStoredChallenge(t *testing.T) {
	f := &fakeProvider{}
	o, _ := newTestOrchestrator(t, f)
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)
	txn := res.TransactionID

	ch, err := o.GenerateFIDO(ctx, pc, txn, "rp-1", "user-1")
	if err != nil {
		t.Fatalf("GenerateFIDO err: %v", err)
	}
	if string(ch.FIDO) != fidoOptions {
		t.Fatalf("el challenge debía traer las opciones crudas: %s", ch.FIDO)
	}

	// el user-agent manda solo la firma: el client data y la credencial
	// salen del challenge guardado en la transacción
	final, err := o.EvaluateFIDO(ctx, pc, txn, "", factors.FIDOResult{
		AuthenticatorData: "authdata-b64",
		Signature:         "firma-b64",
	})
	if err != nil {
		t.Fatalf("EvaluateFIDO err: %v", err)
	}
	if final.Status != StatusAllow || final.Token == nil {
		t.Fatalf("resultado final: %+v", final)
	}
	if f.fidoCredential != "cred-1" {
		t.Fatalf("credentialId: got %q want %q", f.fidoCredential, "cred-1")
	}
	if want := codec.EncodeBytes([]byte(fidoOptions)); f.fidoClientData != want {
		t.Fatalf("clientDataJSON: got %q want %q", f.fidoClientData, want)
	}
}

func TestFIDOEvaluateWithoutGenerate(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{})
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)

	_, err := o.EvaluateFIDO(ctx, pc, res.TransactionID, "rp-1", factors.FIDOResult{Signature: "firma"})
	var txnErr *errs.TransactionError
	if !errors.As(err, &txnErr) {
		t.Fatalf("esperaba TransactionError, got %v", err)
	}
}

func TestGenerateWithoutStepFails(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{})
	ctx := context.Background()
	pc := testPolicyContext()

	res, _ := o.AssessPolicy(ctx, pc)

	// password no tiene paso de generación: error de request, no del proveedor
	_, err := o.Generate(ctx, pc, res.TransactionID, factors.Password, factors.GenerateParams{})
	if err == nil || !strings.Contains(err.Error(), "generación") {
		t.Fatalf("esperaba error de factor sin generate, got %v", err)
	}
	var reqErr *errs.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("esperaba RequestError, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	store := transaction.NewMemoryStore(0)
	cases := []Config{
		{ClientID: "a", ClientSecret: "b"},
		{TenantURL: "https://t", ClientSecret: "b"},
		{TenantURL: "https://t", ClientID: "a"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg, store); err == nil {
			t.Fatalf("config %+v debía fallar", cfg)
		} else {
			var cfgErr *errs.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("esperaba ConfigurationError, got %v", err)
			}
		}
	}
	if _, err := New(Config{TenantURL: "https://t", ClientID: "a", ClientSecret: "b"}, nil); err == nil {
		t.Fatal("store nil debía fallar")
	}
}
