package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/commsdb"
logging:
  level: debug
audit:
  dir: "/var/log/commsdb/audit"
security:
  api_keys:
    backend: ["bk1", "bk2"]
    frontend: ["fk1"]
  signing_keys: ["signsecret"]
  rate_limit:
    rps: 10
    burst: 20
limits:
  max_content_bytes: "1 MB"
retention:
  enabled: true
  cron: "0 3 * * *"
  period: "720h"
  batch_size: 100
  dry_run: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadEffectiveFromFile(t *testing.T) {
	eff, err := LoadEffective(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "config", eff.Source)
	require.Equal(t, "127.0.0.1:9090", eff.Addr)
	require.Equal(t, "/var/lib/commsdb", eff.DBPath)
	require.Equal(t, "debug", eff.Config.Logging.Level)
	require.Equal(t, []string{"bk1", "bk2"}, eff.Config.Security.APIKeys.Backend)
	require.Equal(t, SizeBytes(1000000), eff.Config.Limits.MaxContentBytes)
	require.True(t, eff.Config.Retention.Enabled)
	require.True(t, eff.Config.Retention.DryRun)
}

func TestLoadEffectiveDefaults(t *testing.T) {
	eff, err := LoadEffective("")
	require.NoError(t, err)
	require.Equal(t, "defaults", eff.Source)
	require.Equal(t, ":8080", eff.Addr)
	require.Equal(t, "./data", eff.DBPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COMMSDB_PORT", "7070")
	t.Setenv("COMMSDB_DB_PATH", "/tmp/override")
	t.Setenv("COMMSDB_BACKEND_KEYS", "k1, k2 ,")

	eff, err := LoadEffective(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "env", eff.Source)
	require.Equal(t, "127.0.0.1:7070", eff.Addr)
	require.Equal(t, "/tmp/override", eff.DBPath)
	require.Equal(t, []string{"k1", "k2"}, eff.Config.Security.APIKeys.Backend)
}

func TestLoadEffectiveBadFile(t *testing.T) {
	_, err := LoadEffective(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadEffective(writeConfig(t, "server: ["))
	require.Error(t, err)
}

func TestSizeBytesPlainInteger(t *testing.T) {
	eff, err := LoadEffective(writeConfig(t, "limits:\n  max_content_bytes: 4096\n"))
	require.NoError(t, err)
	require.Equal(t, SizeBytes(4096), eff.Config.Limits.MaxContentBytes)
}

func TestRetentionParsePeriod(t *testing.T) {
	d, err := RetentionConfig{Period: "720h"}.ParsePeriod()
	require.NoError(t, err)
	require.Equal(t, 720*time.Hour, d)

	d, err = RetentionConfig{Period: "30d"}.ParsePeriod()
	require.NoError(t, err)
	require.Equal(t, 30*24*time.Hour, d)

	_, err = RetentionConfig{}.ParsePeriod()
	require.Error(t, err)

	_, err = RetentionConfig{Period: "soon"}.ParsePeriod()
	require.Error(t, err)
}

func TestRuntimeKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"bk": {}},
		SigningKeys: map[string]struct{}{"sk": {}},
	})
	t.Cleanup(func() { SetRuntime(nil) })

	require.Contains(t, GetBackendKeys(), "bk")
	require.Contains(t, GetSigningKeys(), "sk")
	require.Empty(t, GetFrontendKeys())

	// returned maps are copies
	got := GetBackendKeys()
	got["mutated"] = struct{}{}
	require.NotContains(t, GetBackendKeys(), "mutated")
}
