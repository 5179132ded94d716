package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloak/internal/app/cloak"
)

// clearEnv blanks every variable LoadConfig reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLOAK_CONFIG_FILE", "ENVIRONMENT", "PORT", "LOG_LEVEL", "ALLOWED_ORIGINS",
		"JWT_SECRET", "ADMIN_SECRET",
		"CLOAK_TICK_INTERVAL", "CLOAK_DEFAULT_ROOM_SIZE", "CLOAK_MIN_ROOM_MEMBERS",
		"CLOAK_AUTO_CREATE_ROOMS", "CLOAK_AUTO_JOIN_LOBBY", "CLOAK_NOTIFY_ROOM_CHANGES",
		"CLOAK_RECONNECT_WAIT", "CLOAK_RECONNECT_WAIT_ROOMLESS", "CLOAK_PRUNE_EMPTY_ROOMS", "CLOAK_ROOM_LIFE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, devAdminSecret, cfg.AdminSecret)
	assert.Equal(t, cloak.DefaultConfig(), cfg.Cloak)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CLOAK_TICK_INTERVAL", "50ms")
	t.Setenv("CLOAK_DEFAULT_ROOM_SIZE", "4")
	t.Setenv("CLOAK_AUTO_CREATE_ROOMS", "true")
	t.Setenv("CLOAK_MIN_ROOM_MEMBERS", "2")
	t.Setenv("CLOAK_RECONNECT_WAIT", "1000")
	t.Setenv("CLOAK_RECONNECT_WAIT_ROOMLESS", "2s")
	t.Setenv("CLOAK_PRUNE_EMPTY_ROOMS", "30s")
	t.Setenv("CLOAK_AUTO_JOIN_LOBBY", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	c := cfg.Cloak
	assert.Equal(t, 50*time.Millisecond, c.TickInterval)
	assert.Equal(t, 4, c.DefaultRoomSize)
	assert.True(t, c.AutoCreateRooms)
	assert.Equal(t, 2, c.MinRoomMembers)
	require.NotNil(t, c.ReconnectWait)
	assert.Equal(t, time.Second, *c.ReconnectWait)
	require.NotNil(t, c.ReconnectWaitRoomless)
	assert.Equal(t, 2*time.Second, *c.ReconnectWaitRoomless)
	require.NotNil(t, c.PruneEmptyRooms)
	assert.Equal(t, 30*time.Second, *c.PruneEmptyRooms)
	assert.Nil(t, c.RoomLife)
	assert.False(t, c.AutoJoinLobby)
	assert.True(t, c.NotifyRoomChanges)
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "cloak.yaml")
	content := `
environment: staging
port: 8100
allowedOrigins: ["https://game.example"]
cloak:
  tickInterval: 250ms
  minRoomMembers: 3
  autoCreateRooms: true
  reconnectWait: off
  roomLife: 10m
  notifyRoomChanges: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CLOAK_CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("ADMIN_SECRET", "admin-pass")
	t.Setenv("CLOAK_MIN_ROOM_MEMBERS", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 8100, cfg.Port)
	assert.Equal(t, []string{"https://game.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "admin-pass", cfg.AdminSecret)

	c := cfg.Cloak
	assert.Equal(t, 250*time.Millisecond, c.TickInterval)
	assert.Equal(t, 4, c.MinRoomMembers, "environment wins over the file")
	assert.True(t, c.AutoCreateRooms)
	assert.Nil(t, c.ReconnectWait)
	require.NotNil(t, c.RoomLife)
	assert.Equal(t, 10*time.Minute, *c.RoomLife)
	assert.False(t, c.NotifyRoomChanges)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"privileged port", map[string]string{"PORT": "80"}},
		{"missing secrets outside development", map[string]string{"ENVIRONMENT": "production"}},
		{"missing admin secret outside development", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "x"}},
		{"bad duration", map[string]string{"CLOAK_ROOM_LIFE": "soon"}},
		{"disabled tick", map[string]string{"CLOAK_TICK_INTERVAL": "off"}},
		{"bad bool", map[string]string{"CLOAK_AUTO_JOIN_LOBBY": "maybe"}},
		{"auto-create without minimum", map[string]string{"CLOAK_AUTO_CREATE_ROOMS": "true"}},
		{"minimum above room size", map[string]string{"CLOAK_DEFAULT_ROOM_SIZE": "2", "CLOAK_MIN_ROOM_MEMBERS": "3"}},
		{"negative wait", map[string]string{"CLOAK_RECONNECT_WAIT": "-1s"}},
		{"missing file", map[string]string{"CLOAK_CONFIG_FILE": "/nonexistent/cloak.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestParseDuration(t *testing.T) {
	for _, off := range []string{"off", "NULL", " none "} {
		d, err := ParseDuration(off)
		require.NoError(t, err)
		assert.Nil(t, d, off)
	}

	d, err := ParseDuration("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, *d)

	d, err = ParseDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, *d)

	_, err = ParseDuration("later")
	assert.Error(t, err)
}
