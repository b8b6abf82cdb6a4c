package email

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutor_MissingToOrSubject(t *testing.T) {
	ex := New("localhost:2525", nil, "noreply@jobcore.test")

	_, err := ex.Execute(context.Background(), json.RawMessage(`{"subject":"hi"}`), time.Now().Add(time.Second))
	require.Error(t, err)

	_, err = ex.Execute(context.Background(), json.RawMessage(`{"to":"a@b.com"}`), time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestExecutor_InvalidPayload(t *testing.T) {
	ex := New("localhost:2525", nil, "noreply@jobcore.test")

	_, err := ex.Execute(context.Background(), json.RawMessage(`not-json`), time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestExecutor_SendFailureSurfacesAsAdapterError(t *testing.T) {
	// No SMTP relay listening on this port, so smtp.SendMail fails fast on
	// dial and the executor must surface it as an *executor.Error, not panic.
	ex := New("127.0.0.1:1", nil, "noreply@jobcore.test")

	_, err := ex.Execute(context.Background(), json.RawMessage(`{"to":"a@b.com","subject":"hi","text":"body"}`), time.Now().Add(time.Second))
	require.Error(t, err)
}
