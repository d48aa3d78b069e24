package logger

import (
	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// =================================================================================
// CAMPOS - EMULADOR
// =================================================================================

// ProjectID identifica el proyecto emulado.
func ProjectID(v string) zap.Field { return zap.String("project_id", v) }

// TenantID identifica el tenant dentro del proyecto ("" = scope raíz).
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// LocalID es el ID estable de la cuenta.
func LocalID(v string) zap.Field { return zap.String("local_id", v) }

// Email (usar con cuidado, el emulador no guarda datos reales).
func Email(v string) zap.Field { return zap.String("email", v) }

func PhoneNumber(v string) zap.Field { return zap.String("phone_number", v) }

// Provider es el sign_in_provider del flujo (password, phone, google.com...).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Trigger es el evento de blocking function (beforeCreate, beforeSignIn).
func Trigger(v string) zap.Field { return zap.String("trigger", v) }

// Code es el error code devuelto al cliente (EMAIL_EXISTS, etc).
func Code(v string) zap.Field { return zap.String("code", v) }

// =================================================================================
// CAMPOS - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
