package main

import (
	"testing"
	"time"

	"github.com/Wyydra/mcsrelay/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFlagsOverrideConfig(t *testing.T) {
	cmd := &cobra.Command{}
	v := viper.New()
	var configDir string
	addRunFlags(cmd, v, &configDir)

	require.NoError(t, cmd.Flags().Parse([]string{
		"--port=4010",
		"--max-message-bytes=1024",
		"--max-messages-per-second=5",
		"--upstream-connect-timeout=2s",
		"--response-timeout=0s",
	}))

	cfg, err := config.Load(v, configDir)
	require.NoError(t, err)

	assert.Equal(t, 4010, cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Server.MaxMessageBytes)
	assert.Equal(t, 5, cfg.Server.MaxMessagesPerSecond)
	assert.Equal(t, 2*time.Second, cfg.Upstream.ConnectTimeout)
	assert.Zero(t, cfg.Upstream.ResponseTimeout)
	assert.Equal(t, config.Default().Upstream.Address, cfg.Upstream.Address)
}

func TestZeroConnectTimeoutIsRejected(t *testing.T) {
	cmd := &cobra.Command{}
	v := viper.New()
	var configDir string
	addRunFlags(cmd, v, &configDir)

	require.NoError(t, cmd.Flags().Parse([]string{"--upstream-connect-timeout=0s"}))

	_, err := config.Load(v, configDir)
	assert.ErrorContains(t, err, config.KeyUpstreamConnectTimeout)
}
