// Package webhook implements the "webhook" JobTypeExecutor: an http POST by
// default, HMAC-signed when the payload carries a secret.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Payload is the {url, method, headers, body, secret} bag a webhook job
// carries; method defaults to POST rather than http's GET.
type Payload struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Secret  string            `json:"secret,omitempty"`
}

type result struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       json.RawMessage   `json:"body,omitempty"`
}

// Executor dispatches webhook jobs via a shared *http.Client.
type Executor struct {
	Client *http.Client
}

func New() *Executor {
	return &Executor{Client: &http.Client{}}
}

func (e *Executor) Execute(ctx context.Context, raw json.RawMessage, deadline time.Time) (executor.Result, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("invalid webhook payload: %v", err)}
	}
	if p.URL == "" {
		return executor.Result{}, &executor.Error{Message: "webhook payload requires url"}
	}
	method := p.Method
	if method == "" {
		method = http.MethodPost
	}

	var bodyReader io.Reader
	if len(p.Body) > 0 {
		bodyReader = bytes.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, bodyReader)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("build request: %v", err)}
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if p.Secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(p.Secret, p.Body))
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("read response body: %v", err)}
	}

	r := result{StatusCode: resp.StatusCode, Headers: flattenHeaders(resp.Header)}
	if json.Valid(respBody) {
		r.Body = respBody
	} else if len(respBody) > 0 {
		encoded, _ := json.Marshal(string(respBody))
		r.Body = encoded
	}

	data, err := json.Marshal(r)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("marshal result: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("webhook returned status %d", resp.StatusCode), Stack: string(data)}
	}
	return executor.Result{Data: data}, nil
}

// sign computes hex(hmac-sha256(secret, body)); body is already the
// canonical JSON the caller intends to send, so no further canonicalization
// is applied here.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
