package config

import (
	"errors"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil, flags.HelpFlag)
	require.NoError(t, err)

	assert.Equal(t, "status", cfg.Target.Mode)
	assert.Zero(t, cfg.Target.Port)
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Query.DNSTimeout)
	assert.Equal(t, int32(47), cfg.Query.ProtocolVersion)
	assert.Equal(t, "requests.log", cfg.Journal.Path)
	assert.Equal(t, "mcpanel.db", cfg.Storage.Path)
	assert.Equal(t, 10, cfg.Storage.Workers)
	assert.Empty(t, cfg.GeoIP.Path)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestParseArgsNamespacedFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--host", "play.example.test",
		"--port", "25570",
		"--mode", "query",
		"--query-timeout", "2s",
		"--db-disable",
		"--journal-path=",
		"--log-level", "debug",
	}, flags.HelpFlag)
	require.NoError(t, err)

	assert.Equal(t, "play.example.test", cfg.Target.Host)
	assert.Equal(t, 25570, cfg.Target.Port)
	assert.Equal(t, "query", cfg.Target.Mode)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout)
	assert.True(t, cfg.Storage.Disable)
	assert.Empty(t, cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestParseArgsRejectsUnknownMode(t *testing.T) {
	_, err := ParseArgs([]string{"--mode", "ping"}, flags.HelpFlag)
	require.Error(t, err)
}

func TestParseArgsVersion(t *testing.T) {
	_, err := ParseArgs([]string{"-v"}, flags.HelpFlag)
	require.True(t, errors.Is(err, ErrVersion))
}

func TestValidate(t *testing.T) {
	cfg, err := ParseArgs(nil, flags.HelpFlag)
	require.NoError(t, err)

	cfg.Server.Serve = true
	require.Error(t, cfg.Validate())

	cfg.Server.AuthToken = "secret"
	require.NoError(t, cfg.Validate())

	cfg.Target.Port = 70000
	require.Error(t, cfg.Validate())
	cfg.Target.Port = 0

	cfg.Storage.CheckAll = true
	cfg.Storage.Disable = true
	require.Error(t, cfg.Validate())

	cfg.Storage.Disable = false
	cfg.Query.Burst = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Query.Burst)
}
