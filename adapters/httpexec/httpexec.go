// Package httpexec implements the "http" JobTypeExecutor: a thin wrapper
// over net/http, deliberately external to the scheduling core per the
// adapter contract's "all are external to the scheduling core".
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Payload is the {url, method, headers, body, timeout_ms} bag an http job
// carries.
type Payload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
}

type result struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       json.RawMessage   `json:"body,omitempty"`
}

// Executor dispatches http jobs via a shared *http.Client.
type Executor struct {
	Client *http.Client
}

func New() *Executor {
	return &Executor{Client: &http.Client{}}
}

func (e *Executor) Execute(ctx context.Context, raw json.RawMessage, deadline time.Time) (executor.Result, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("invalid http payload: %v", err)}
	}
	if p.URL == "" {
		return executor.Result{}, &executor.Error{Message: "http payload requires url"}
	}
	method := p.Method
	if method == "" {
		method = http.MethodGet
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
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("http request returned status %d", resp.StatusCode), Stack: string(data)}
	}
	return executor.Result{Data: data}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
