package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod | test
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// BaseURL arma los oobLink (/emulator/action).
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Emulator struct {
		// Proyecto para las rutas sin /projects/{id}.
		DefaultProject   string `yaml:"default_project"`
		TenantAutoCreate bool   `yaml:"tenant_auto_create"`
		// SeedFile: JSONC con tenants/config/cuentas a importar al arrancar.
		SeedFile string `yaml:"seed_file"`
	} `yaml:"emulator"`

	JWT struct {
		IDTokenTTL string `yaml:"id_token_ttl"`
	} `yaml:"jwt"`

	Codes struct {
		OobTTL            time.Duration `yaml:"oob_ttl"`
		VerificationTTL   time.Duration `yaml:"verification_ttl"`
		MfaPendingTTL     time.Duration `yaml:"mfa_pending_ttl"`
		TemporaryProofTTL time.Duration `yaml:"temporary_proof_ttl"`
	} `yaml:"codes"`

	Security struct {
		PasswordPolicy struct {
			MinLength int `yaml:"min_length"`
		} `yaml:"password_policy"`
	} `yaml:"security"`

	Blocking struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"blocking"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// memory | redis
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`

		// envíos de SMS (sendVerificationCode, mfa start)
		SMS struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"sms"`
		// envíos de OOB (sendOobCode)
		Oob struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"oob"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Load lee el YAML (path vacío = solo defaults + env), aplica defaults,
// overrides AUTHEMU_* y valida.
func Load(path string) (*Config, error) {
	var c Config
	// los bools que arrancan en true se fijan antes del YAML
	c.Emulator.TenantAutoCreate = true
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.setDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// seed relativo al directorio del YAML
	if p := strings.TrimSpace(c.Emulator.SeedFile); p != "" && path != "" && !filepath.IsAbs(p) {
		c.Emulator.SeedFile = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return &c, nil
}

// Default devuelve la config sin YAML ni env.
func Default() *Config {
	var c Config
	c.Emulator.TenantAutoCreate = true
	c.setDefaults()
	return &c
}

func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9099"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Emulator.DefaultProject == "" {
		c.Emulator.DefaultProject = "demo-project"
	}
	if c.JWT.IDTokenTTL == "" {
		c.JWT.IDTokenTTL = "1h"
	}
	if c.Codes.OobTTL == 0 {
		c.Codes.OobTTL = time.Hour
	}
	if c.Codes.VerificationTTL == 0 {
		c.Codes.VerificationTTL = 10 * time.Minute
	}
	if c.Codes.MfaPendingTTL == 0 {
		c.Codes.MfaPendingTTL = 20 * time.Minute
	}
	if c.Codes.TemporaryProofTTL == 0 {
		c.Codes.TemporaryProofTTL = 10 * time.Minute
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 6
	}
	if c.Blocking.Timeout == 0 {
		c.Blocking.Timeout = 60 * time.Second
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "authemu:rl:"
	}
	if c.Rate.SMS.Limit == 0 {
		c.Rate.SMS.Limit = 10
	}
	if c.Rate.SMS.Window == "" {
		c.Rate.SMS.Window = "1m"
	}
	if c.Rate.Oob.Limit == 0 {
		c.Rate.Oob.Limit = 20
	}
	if c.Rate.Oob.Window == "" {
		c.Rate.Oob.Window = "1m"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.From == "" {
		c.SMTP.From = "noreply@authemu.local"
	}
}

// BaseURL efectiva: la configurada o http://localhost<addr>.
func (c *Config) BaseURL() string {
	if b := strings.TrimSpace(c.Server.BaseURL); b != "" {
		return strings.TrimRight(b, "/")
	}
	addr := c.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// IDTokenTTL parseado (Validate ya garantizó el formato).
func (c *Config) IDTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.JWT.IDTokenTTL)
	return d
}

// SMSWindow / OobWindow parseados.
func (c *Config) SMSWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.SMS.Window)
	return d
}

func (c *Config) OobWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Oob.Window)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables AUTHEMU_*.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("AUTHEMU_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("AUTHEMU_LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("AUTHEMU_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("AUTHEMU_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("AUTHEMU_BASE_URL"); ok {
		c.Server.BaseURL = v
	}

	// EMULATOR
	if v, ok := getEnvStr("AUTHEMU_DEFAULT_PROJECT"); ok {
		c.Emulator.DefaultProject = v
	}
	if v, ok := getEnvBool("AUTHEMU_TENANT_AUTO_CREATE"); ok {
		c.Emulator.TenantAutoCreate = v
	}
	if v, ok := getEnvStr("AUTHEMU_SEED_FILE"); ok {
		c.Emulator.SeedFile = v
	}

	// TOKENS / CODES
	if v, ok := getEnvStr("AUTHEMU_ID_TOKEN_TTL"); ok {
		c.JWT.IDTokenTTL = v
	}
	if v, ok := getEnvDur("AUTHEMU_OOB_TTL"); ok {
		c.Codes.OobTTL = v
	}
	if v, ok := getEnvDur("AUTHEMU_VERIFICATION_TTL"); ok {
		c.Codes.VerificationTTL = v
	}
	if v, ok := getEnvInt("AUTHEMU_PASSWORD_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvDur("AUTHEMU_BLOCKING_TIMEOUT"); ok {
		c.Blocking.Timeout = v
	}

	// RATE
	if v, ok := getEnvBool("AUTHEMU_RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("AUTHEMU_RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("AUTHEMU_REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("AUTHEMU_REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvInt("AUTHEMU_RATE_SMS_LIMIT"); ok {
		c.Rate.SMS.Limit = v
	}
	if v, ok := getEnvStr("AUTHEMU_RATE_SMS_WINDOW"); ok {
		c.Rate.SMS.Window = v
	}
	if v, ok := getEnvInt("AUTHEMU_RATE_OOB_LIMIT"); ok {
		c.Rate.Oob.Limit = v
	}
	if v, ok := getEnvStr("AUTHEMU_RATE_OOB_WINDOW"); ok {
		c.Rate.Oob.Window = v
	}

	// SMTP
	if v, ok := getEnvStr("AUTHEMU_SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("AUTHEMU_SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("AUTHEMU_SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("AUTHEMU_SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("AUTHEMU_SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("AUTHEMU_SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}

	// METRICS
	if v, ok := getEnvBool("AUTHEMU_METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// Validate chequea formatos y combinaciones inválidas.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.JWT.IDTokenTTL); err != nil {
		return fmt.Errorf("jwt.id_token_ttl: %w", err)
	}
	if c.IDTokenTTL() <= 0 {
		return fmt.Errorf("jwt.id_token_ttl must be positive")
	}
	for name, w := range map[string]string{"rate.sms.window": c.Rate.SMS.Window, "rate.oob.window": c.Rate.Oob.Window} {
		if _, err := time.ParseDuration(w); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Enabled && strings.TrimSpace(c.Rate.Redis.Addr) == "" {
			return fmt.Errorf("rate.redis.addr is required with backend redis")
		}
	default:
		return fmt.Errorf("rate.backend: unknown backend %q", c.Rate.Backend)
	}
	switch c.SMTP.TLS {
	case "auto", "starttls", "ssl", "none":
	default:
		return fmt.Errorf("smtp.tls: unknown mode %q", c.SMTP.TLS)
	}
	if c.Security.PasswordPolicy.MinLength < 1 {
		return fmt.Errorf("security.password_policy.min_length must be >= 1")
	}
	if strings.TrimSpace(c.Emulator.DefaultProject) == "" {
		return fmt.Errorf("emulator.default_project is required")
	}
	return nil
}
