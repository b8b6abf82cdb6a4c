package script

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_SuccessfulCommand(t *testing.T) {
	ex := New()
	payload, _ := json.Marshal(Payload{Command: "echo", Args: []string{"hello"}})

	result, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "hello")
}

func TestExecutor_NonZeroExit(t *testing.T) {
	ex := New()
	payload, _ := json.Marshal(Payload{Command: "false"})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.Error(t, err)
}

func TestExecutor_MissingCommand(t *testing.T) {
	ex := New()
	payload, _ := json.Marshal(Payload{})

	_, err := ex.Execute(context.Background(), payload, time.Now().Add(time.Second))
	require.Error(t, err)
}
