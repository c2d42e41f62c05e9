// Package rest implementa el helper REST uniforme por el que pasa toda
// llamada al proveedor de identidad. Encapsula método, path, headers y la
// (de)serialización JSON/form, y convierte las respuestas 4xx/5xx en
// *APIError para que el llamador pueda ramificar por status sin tocar el
// transporte.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Options ajusta un request individual.
type Options struct {
	// Bearer, si está presente, viaja como Authorization: Bearer <token>.
	Bearer string

	// Query se agrega al path del request.
	Query url.Values

	// ReturnJWT agrega returnJwt=true, pidiéndole al proveedor que envuelva
	// la respuesta como una aserción firmada.
	ReturnJWT bool

	// Form, si es true, codifica body (url.Values) como
	// application/x-www-form-urlencoded en vez de JSON.
	Form bool
}

// Response es el resultado de un request exitoso (2xx).
type Response struct {
	Status int
	Data   json.RawMessage
}

// Decode deserializa el cuerpo de la respuesta sobre v. Un 204 no decodifica nada.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("rest: decodificando respuesta: %w", err)
	}
	return nil
}

// APIError se retorna cuando el proveedor responde 4xx/5xx.
type APIError struct {
	Status int
	Body   json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("rest: el proveedor respondió %d: %s", e.Status, string(e.Body))
	}
	return fmt.Sprintf("rest: el proveedor respondió %d", e.Status)
}

// IsClientError indica si el proveedor rechazó el request (4xx).
func (e *APIError) IsClientError() bool { return e.Status >= 400 && e.Status < 500 }

// Client habla con un tenant del proveedor de identidad.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New crea un cliente para la URL base del tenant.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Request ejecuta una llamada contra el proveedor.
// body puede ser nil, url.Values (con opt.Form) o cualquier valor
// serializable a JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any, opt Options) (*Response, error) {
	u := c.BaseURL + path
	q := url.Values{}
	for k, vs := range opt.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if opt.ReturnJWT {
		q.Set("returnJwt", "true")
	}
	if enc := q.Encode(); enc != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + enc
	}

	var reader io.Reader
	contentType := ""
	switch {
	case body == nil:
	case opt.Form:
		form, ok := body.(url.Values)
		if !ok {
			return nil, fmt.Errorf("rest: el body form debe ser url.Values, no %T", body)
		}
		reader = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("rest: serializando body: %w", err)
		}
		reader = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if opt.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+opt.Bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("rest: leyendo respuesta: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Body: json.RawMessage(data)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return &Response{Status: resp.StatusCode}, nil
	}
	return &Response{Status: resp.StatusCode, Data: json.RawMessage(data)}, nil
}

// Get es un atajo de Request con http.MethodGet y sin body.
func (c *Client) Get(ctx context.Context, path string, opt Options) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, opt)
}

// Post es un atajo de Request con http.MethodPost.
func (c *Client) Post(ctx context.Context, path string, body any, opt Options) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body, opt)
}

// PostForm envía valores form-encoded y decodifica la respuesta JSON sobre out.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	resp, err := c.Post(ctx, path, form, Options{Form: true})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
