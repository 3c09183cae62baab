package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestLoadPrefixOverride(t *testing.T) {
	t.Setenv("API_PREFIX", "/api/v2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v2", cfg.APIPrefix)
}
