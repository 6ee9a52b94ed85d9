package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Prefix string
	}

	Auth struct {
		Secret string
		TTL    time.Duration
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Prefix = "lms"
	c.Auth.TTL = time.Hour
	return c
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
http:
  port: 9090
redis:
  addrs: ["localhost:6379", "localhost:6380"]
auth:
  ttl: 30m
`), 0o600))

	portOnly := filepath.Join(t.TempDir(), "port.yaml")
	require.NoError(t, os.WriteFile(portOnly, []byte("http:\n  port: 9090\n"), 0o600))

	tests := map[string]struct {
		file   string
		env    map[string]string
		assert func(t *testing.T, c testConfig)
	}{
		"defaults only": {
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 8080, c.HTTP.Port)
				assert.Equal(t, "lms", c.Redis.Prefix)
				assert.Equal(t, time.Hour, c.Auth.TTL)
			},
		},

		"file overrides defaults": {
			file: file,
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 9090, c.HTTP.Port)
				assert.Equal(t, []string{"localhost:6379", "localhost:6380"}, c.Redis.Addrs)
				assert.Equal(t, "lms", c.Redis.Prefix)
				assert.Equal(t, 30*time.Minute, c.Auth.TTL)
			},
		},

		"env overrides file": {
			file: file,
			env: map[string]string{
				"HTTP_PORT":    "7070",
				"AUTH_SECRET":  "s3cret",
				"AUTH_TTL":     "2h",
				"REDIS_PREFIX": "test",
			},
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 7070, c.HTTP.Port)
				assert.Equal(t, "s3cret", c.Auth.Secret)
				assert.Equal(t, 2*time.Hour, c.Auth.TTL)
				assert.Equal(t, "test", c.Redis.Prefix)
			},
		},

		"env overrides keys absent from file": {
			file: portOnly,
			env: map[string]string{
				"AUTH_SECRET":  "s3cret",
				"REDIS_PREFIX": "test",
			},
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 9090, c.HTTP.Port)
				assert.Equal(t, "s3cret", c.Auth.Secret)
				assert.Equal(t, "test", c.Redis.Prefix)
				assert.Equal(t, time.Hour, c.Auth.TTL)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			c := defaults()
			require.NoError(t, config.Load(tc.file, &c))
			tc.assert(t, c)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	assert.Error(t, config.Load(filepath.Join(t.TempDir(), "missing.yaml"), &c))
}
