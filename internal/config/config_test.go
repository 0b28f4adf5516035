package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	configuration, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddress, configuration.HTTPAddress)
	assert.Equal(t, DefaultNamespace, configuration.Namespace)
	assert.Equal(t, StoreBackendRedis, configuration.StoreBackend)
	assert.Equal(t, DefaultPreviewLimit, configuration.Notify.PreviewLimit)
	assert.Equal(t, DefaultNotifyEndpoint, configuration.Notify.API.Endpoint)
	assert.Equal(t, NotifyQueueModeInline, configuration.Notify.QueueMode)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
HTTPAddress: ":9090"
Namespace: "secrets"
StoreBackend: "memory"
Notify:
  Email: "owner@example.com"
  Provider: "smtp"
  PreviewLimit: 80
  SMTP:
    From: "noreply@example.com"
    Host: "smtp.example.com"
    Port: 587
    UseTLS: true
`)

	configuration, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", configuration.HTTPAddress)
	assert.Equal(t, "secrets", configuration.Namespace)
	assert.Equal(t, StoreBackendMemory, configuration.StoreBackend)
	assert.Equal(t, "owner@example.com", configuration.Notify.Email)
	assert.Equal(t, NotifyProviderSMTP, configuration.Notify.Provider)
	assert.Equal(t, 80, configuration.Notify.PreviewLimit)
	assert.Equal(t, "smtp.example.com", configuration.Notify.SMTP.Host)
	assert.True(t, configuration.Notify.SMTP.UseTLS)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
Redis:
  Addr: "yaml-redis:6379"
Notify:
  Email: "yaml@example.com"
`)

	t.Setenv("REDIS_ADDR", "env-redis:6379")
	t.Setenv("NOTIFICATION_EMAIL", "env@example.com")
	t.Setenv("NOTIFY_API_KEY", "secret-key")

	configuration, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-redis:6379", configuration.Redis.Addr)
	assert.Equal(t, "env@example.com", configuration.Notify.Email)
	assert.Equal(t, "secret-key", configuration.Notify.API.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := defaultConfig()
	base.StoreBackend = "cassandra"
	assert.Error(t, base.Validate())

	base = defaultConfig()
	base.Notify.Provider = "carrier-pigeon"
	assert.Error(t, base.Validate())

	base = defaultConfig()
	base.Notify.QueueMode = NotifyQueueModeNSQ
	assert.Error(t, base.Validate(), "nsq mode without nsqd address must fail")

	base.NSQ.NsqdAddress = "127.0.0.1:4150"
	assert.NoError(t, base.Validate())
}

func TestApplyDefaultsRestoresZeroedFields(t *testing.T) {
	configuration := defaultConfig()
	configuration.Notify.PreviewLimit = 0
	configuration.Notify.Timeout = 0
	configuration.Notify.IdempotencyTTL = 0

	configuration.applyDefaults()

	assert.Equal(t, DefaultPreviewLimit, configuration.Notify.PreviewLimit)
	assert.Equal(t, DefaultNotifyTimeout, configuration.Notify.Timeout)
	assert.Equal(t, 24*time.Hour, configuration.Notify.IdempotencyTTL)
}
