package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecret 满足 32 字符长度要求的测试密钥
const testSecret = "test-secret-key-for-unit-tests-0123456789"

func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()
	t.Setenv("MAILSIGHT_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Tracking.BaseURL)
	assert.Equal(t, 12, cfg.Tracking.CodeLength)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.Type)
	assert.Equal(t, "mailsight", cfg.JWT.Issuer)
	assert.False(t, cfg.SMTP.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper()
	t.Setenv("MAILSIGHT_JWT_SECRET", testSecret)
	t.Setenv("MAILSIGHT_SERVER_PORT", "9090")
	t.Setenv("MAILSIGHT_TRACKING_BASE_URL", "https://track.example.com/")
	t.Setenv("MAILSIGHT_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MAILSIGHT_DATABASE_TYPE", "postgres")
	t.Setenv("MAILSIGHT_DATABASE_DSN", "host=localhost user=ms dbname=ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	// base_url 末尾斜杠应被去除
	assert.Equal(t, "https://track.example.com", cfg.Tracking.BaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Type)
}

func TestLoad_RejectsDefaultJWTSecret(t *testing.T) {
	resetViper()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	resetViper()
	t.Setenv("MAILSIGHT_JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 characters")
}

func TestLoad_SMTPEnabledRequiresAddress(t *testing.T) {
	resetViper()
	t.Setenv("MAILSIGHT_JWT_SECRET", testSecret)
	t.Setenv("MAILSIGHT_SMTP_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.address")
}

func TestLoad_InvalidCodeLengthFallsBack(t *testing.T) {
	resetViper()
	t.Setenv("MAILSIGHT_JWT_SECRET", testSecret)
	t.Setenv("MAILSIGHT_TRACKING_CODE_LENGTH", "100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Tracking.CodeLength)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a, b"))
	assert.Equal(t, []string{"*"}, parseList("*"))
	assert.Empty(t, parseList(" , "))
}
