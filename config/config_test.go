package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "OPENAI_BASE_URL", "OPENAI_MODEL", "QUIZ_SHUFFLE", "REDIS_HOST", "SESSION_IDLE_TIMEOUT", "UI_TOKEN_FILE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-5-mini", cfg.OpenAIModel)
	assert.False(t, cfg.ShuffleQuestions)
	assert.Empty(t, cfg.RedisHost)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, "studydeck.token", cfg.UITokenFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QUIZ_SHUFFLE", "true")
	t.Setenv("GENERATION_TIMEOUT", "15s")
	t.Setenv("COURSE_CACHE_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.True(t, cfg.ShuffleQuestions)
	assert.Equal(t, 15*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 30*time.Second, cfg.CourseCacheTTL)
}

func TestDialector(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", DBPath: "x.sqlite3"}
	d, err := Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	cfg.DBDriver = "postgres"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	cfg.DBDriver = "mysql"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	cfg.DBDriver = "oracle"
	_, err = Dialector(cfg)
	assert.Error(t, err)
}

func TestInitRedisDisabled(t *testing.T) {
	assert.Nil(t, InitRedis(&Config{}))
	assert.NotNil(t, InitRedis(&Config{RedisHost: "localhost", RedisPort: "6379"}))
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	assert.Contains(t, SQLiteDSN("db.sqlite3"), "_foreign_keys=on")
}
