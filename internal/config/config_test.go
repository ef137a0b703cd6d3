package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
database:
  driver: sqlite
  path: ":memory:"
jwt:
  secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN())
	assert.Equal(t, "hearth:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 168, cfg.JWT.ExpireHours)
	assert.Equal(t, 27*time.Second, cfg.WebSocket.PingPeriod)
	assert.Equal(t, "local", cfg.Realtime.Broker)
	assert.Equal(t, uint16(1), cfg.IdGen.MachineId)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  http_port: 9000
jwt:
  secret: from-file
`)
	t.Setenv("HEARTH_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	my := DatabaseConfig{Driver: "mysql", User: "u", Password: "p", Host: "h", Port: 3306, Database: "d", Charset: "utf8mb4"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", my.DSN())

	pg := DatabaseConfig{Driver: "postgres", User: "u", Password: "p", Host: "h", Port: 5432, Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.Server.WSURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadClient_File(t *testing.T) {
	path := writeFile(t, "client.yaml", `
server:
  base_url: http://chat.example.com
timeout: 3s
auth:
  email: a@example.com
`)
	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://chat.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "a@example.com", cfg.Auth.Email)
}
