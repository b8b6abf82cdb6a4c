package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_DefaultsToPostAndSignsWhenSecretPresent(t *testing.T) {
	var gotMethod, gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotSig = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ex := New()
	payload, _ := json.Marshal(Payload{URL: srv.URL, Body: json.RawMessage(`{"event":"job.completed"}`), Secret: "s3cr3t"})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.NotEmpty(t, gotSig)
}

func TestExecutor_NoSecretNoSignatureHeader(t *testing.T) {
	var gotSig string
	sawHeader := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig, sawHeader = r.Header.Get("X-Webhook-Signature"), r.Header.Get("X-Webhook-Signature") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ex := New()
	payload, _ := json.Marshal(Payload{URL: srv.URL})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.False(t, sawHeader)
	assert.Empty(t, gotSig)
}
