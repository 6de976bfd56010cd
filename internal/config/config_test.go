package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeYAML(t, "chain_id: Bitcoin\nhub_url: https://hub.example\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Bitcoin", cfg.ChainID)
	require.Equal(t, 5, cfg.HubMaxRetries)
	require.Equal(t, 6, cfg.MinConfirmations)
	require.Equal(t, "local", cfg.SignerMode)
}

func TestLoadRejectsMissingChainID(t *testing.T) {
	path := writeYAML(t, "hub_url: https://hub.example\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsRemoteSignerWithoutURL(t *testing.T) {
	path := writeYAML(t, "chain_id: Bitcoin\nhub_url: https://hub.example\nsigner_mode: remote\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInconsistentResponseCounts(t *testing.T) {
	path := writeYAML(t, "chain_id: Bitcoin\nhub_url: https://hub.example\nminimum_response_count: 5\ntotal_required_count: 3\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	path := writeYAML(t, "chain_id: Bitcoin\nhub_url: https://hub.example\n")
	t.Setenv("BRIDGE_HUB_MAX_RETRIES", "9")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.HubMaxRetries)
}
