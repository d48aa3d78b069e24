package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "authemu.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":9099", c.Server.Addr)
	require.Equal(t, "http://localhost:9099", c.BaseURL())
	require.Equal(t, time.Hour, c.IDTokenTTL())
	require.Equal(t, "memory", c.Rate.Backend)
	require.False(t, c.Rate.Enabled)
	require.True(t, c.Emulator.TenantAutoCreate)
	require.Equal(t, 6, c.Security.PasswordPolicy.MinLength)
	require.Equal(t, time.Minute, c.SMSWindow())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":8181"
  base_url: "http://emu.local:8181/"
emulator:
  default_project: "from-yaml"
  tenant_auto_create: false
  seed_file: "seed.jsonc"
rate:
  enabled: true
  oob:
    limit: 3
    window: "10m"
`)
	t.Setenv("AUTHEMU_DEFAULT_PROJECT", "from-env")
	t.Setenv("AUTHEMU_CORS_ALLOWED_ORIGINS", "http://a, http://b")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":8181", c.Server.Addr)
	require.Equal(t, "http://emu.local:8181", c.BaseURL())
	require.Equal(t, "from-env", c.Emulator.DefaultProject)
	require.False(t, c.Emulator.TenantAutoCreate)
	require.Equal(t, filepath.Join(filepath.Dir(p), "seed.jsonc"), c.Emulator.SeedFile)
	require.Equal(t, []string{"http://a", "http://b"}, c.Server.CORSAllowedOrigins)
	require.Equal(t, 3, c.Rate.Oob.Limit)
	require.Equal(t, 10*time.Minute, c.OobWindow())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad ttl":       "jwt:\n  id_token_ttl: soon\n",
		"bad backend":   "rate:\n  backend: etcd\n",
		"redis no addr": "rate:\n  enabled: true\n  backend: redis\n",
		"bad tls":       "smtp:\n  tls: maybe\n",
		"bad window":    "rate:\n  sms:\n    window: often\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
