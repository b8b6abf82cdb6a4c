package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsApplied(t *testing.T) {
	cfg, err := New("worker-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
	assert.Equal(t, DefaultJobMaxRetryAttempts, cfg.JobMaxRetryAttempts)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.WorkerConcurrency)
}

func TestNew_RequiresInstance(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestNew_AggregatesOptionErrors(t *testing.T) {
	_, err := New("worker-1",
		WithServer(-1, ""),
		WithWorkerConcurrency(0),
	)
	require.Error(t, err)
}

func TestWithStore_OverridesDefaults(t *testing.T) {
	cfg, err := New("worker-1", WithStore(StoreConfig{Host: "db", Name: "jobcore", Port: 5432}))
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Store.Host)
	assert.Contains(t, cfg.Store.ConnString(), "dbname=jobcore")
}
