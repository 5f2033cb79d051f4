package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/brackets?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, time.Minute, cfg.RegistrationSweepInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.UploadsEnabled())
	assert.False(t, cfg.EmailEnabled())
}

func TestLoadMemoryDriverNeedsNoDatabase(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_DRIVER", "Memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET_KEY": "", "DATABASE_URL": "postgres://x"}},
		{"postgres without url", map[string]string{"JWT_SECRET_KEY": "s", "DATABASE_URL": ""}},
		{"port out of range", map[string]string{"JWT_SECRET_KEY": "s", "DATABASE_URL": "postgres://x", "SERVER_PORT": "70000"}},
		{"unknown driver", map[string]string{"JWT_SECRET_KEY": "s", "STORAGE_DRIVER": "mongo"}},
		{"port not a number", map[string]string{"JWT_SECRET_KEY": "s", "DATABASE_URL": "postgres://x", "SERVER_PORT": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEmailEnabledSplitsRecipients(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "noreply@example.com")
	t.Setenv("NOTIFY_ADMIN_EMAILS", "a@example.com,b@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EmailEnabled())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.NotifyAdminEmails)
}
