package httpexec

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

func TestExecutor_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ex := New()
	payload, _ := json.Marshal(Payload{URL: srv.URL, Method: http.MethodGet})

	result, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), `"statusCode":200`)
}

func TestExecutor_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := New()
	payload, _ := json.Marshal(Payload{URL: srv.URL})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestExecutor_MissingURL(t *testing.T) {
	ex := New()
	payload, _ := json.Marshal(Payload{})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.Error(t, err)
}
