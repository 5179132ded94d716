/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings come from an optional YAML file named by CLOAK_CONFIG_FILE, overridden by operating system
environment variables: the running environment, port, CORS allowed origins, secrets, log level and
the orchestrator options.
*/
package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cloak/internal/app/cloak"
)

const (
	// DefaultPort is the listen port when neither the file nor PORT sets one.
	DefaultPort = 8090

	// development-only fallbacks, rejected in any other environment.
	devJWTSecret   = "your_default_insecure_secret_key_change_me"
	devAdminSecret = "admin"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int
	LogLevel    string

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string
	AdminSecret    string

	// Orchestrator Settings
	Cloak cloak.Config
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// fileConfig mirrors the YAML file. Pointer fields distinguish "absent" from zero values.
type fileConfig struct {
	Environment    string   `yaml:"environment"`
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	Cloak struct {
		TickInterval          *string `yaml:"tickInterval"`
		DefaultRoomSize       *int    `yaml:"defaultRoomSize"`
		AutoCreateRooms       *bool   `yaml:"autoCreateRooms"`
		MinRoomMembers        *int    `yaml:"minRoomMembers"`
		ReconnectWait         *string `yaml:"reconnectWait"`
		ReconnectWaitRoomless *string `yaml:"reconnectWaitRoomless"`
		PruneEmptyRooms       *string `yaml:"pruneEmptyRooms"`
		RoomLife              *string `yaml:"roomLife"`
		AutoJoinLobby         *bool   `yaml:"autoJoinLobby"`
		NotifyRoomChanges     *bool   `yaml:"notifyRoomChanges"`
	} `yaml:"cloak"`
}

// LoadConfig reads the optional YAML file, applies environment overrides and validates the result.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           DefaultPort,
		AllowedOrigins: []string{},
		Cloak:          cloak.DefaultConfig(),
	}

	// --- Config File ---
	if path := os.Getenv("CLOAK_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// --- General Server Settings ---
	// Environment
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
		}
		cfg.Port = port
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// LogLevel
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// --- Security Settings ---
	// AllowedOrigins
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		cfg.AllowedOrigins = splitList(originsStr)
	}

	// JWTSecret and AdminSecret
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")
	if cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		if cfg.AdminSecret == "" {
			cfg.AdminSecret = devAdminSecret
		}
	} else {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		if cfg.AdminSecret == "" {
			return nil, fmt.Errorf("ADMIN_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
	}

	// --- Orchestrator Settings ---
	if err := applyCloakEnv(&cfg.Cloak); err != nil {
		return nil, err
	}
	if err := validateCloak(cfg.Cloak); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Environment != "" {
		cfg.Environment = fc.Environment
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}

	c := &cfg.Cloak
	fcc := fc.Cloak

	if fcc.TickInterval != nil {
		d, err := ParseDuration(*fcc.TickInterval)
		if err != nil {
			return fmt.Errorf("config file: tickInterval: %w", err)
		}
		if d == nil {
			return fmt.Errorf("config file: tickInterval cannot be disabled")
		}
		c.TickInterval = *d
	}
	if fcc.DefaultRoomSize != nil {
		c.DefaultRoomSize = *fcc.DefaultRoomSize
	}
	if fcc.AutoCreateRooms != nil {
		c.AutoCreateRooms = *fcc.AutoCreateRooms
	}
	if fcc.MinRoomMembers != nil {
		c.MinRoomMembers = *fcc.MinRoomMembers
	}
	if fcc.AutoJoinLobby != nil {
		c.AutoJoinLobby = *fcc.AutoJoinLobby
	}
	if fcc.NotifyRoomChanges != nil {
		c.NotifyRoomChanges = *fcc.NotifyRoomChanges
	}

	optional := []struct {
		name string
		raw  *string
		dst  **time.Duration
	}{
		{"reconnectWait", fcc.ReconnectWait, &c.ReconnectWait},
		{"reconnectWaitRoomless", fcc.ReconnectWaitRoomless, &c.ReconnectWaitRoomless},
		{"pruneEmptyRooms", fcc.PruneEmptyRooms, &c.PruneEmptyRooms},
		{"roomLife", fcc.RoomLife, &c.RoomLife},
	}
	for _, o := range optional {
		if o.raw == nil {
			continue
		}
		d, err := ParseDuration(*o.raw)
		if err != nil {
			return fmt.Errorf("config file: %s: %w", o.name, err)
		}
		*o.dst = d
	}

	return nil
}

func applyCloakEnv(c *cloak.Config) error {
	if v := os.Getenv("CLOAK_TICK_INTERVAL"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CLOAK_TICK_INTERVAL environment variable: %w", err)
		}
		if d == nil {
			return errors.New("CLOAK_TICK_INTERVAL cannot be disabled")
		}
		c.TickInterval = *d
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CLOAK_DEFAULT_ROOM_SIZE", &c.DefaultRoomSize},
		{"CLOAK_MIN_ROOM_MEMBERS", &c.MinRoomMembers},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", e.key, err)
		}
		*e.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CLOAK_AUTO_CREATE_ROOMS", &c.AutoCreateRooms},
		{"CLOAK_AUTO_JOIN_LOBBY", &c.AutoJoinLobby},
		{"CLOAK_NOTIFY_ROOM_CHANGES", &c.NotifyRoomChanges},
	}
	for _, e := range bools {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", e.key, err)
		}
		*e.dst = b
	}

	durations := []struct {
		key string
		dst **time.Duration
	}{
		{"CLOAK_RECONNECT_WAIT", &c.ReconnectWait},
		{"CLOAK_RECONNECT_WAIT_ROOMLESS", &c.ReconnectWaitRoomless},
		{"CLOAK_PRUNE_EMPTY_ROOMS", &c.PruneEmptyRooms},
		{"CLOAK_ROOM_LIFE", &c.RoomLife},
	}
	for _, e := range durations {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", e.key, err)
		}
		*e.dst = d
	}

	return nil
}

func validateCloak(c cloak.Config) error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.DefaultRoomSize < 0 {
		return fmt.Errorf("default room size must not be negative, got %d", c.DefaultRoomSize)
	}
	if c.MinRoomMembers < 0 {
		return fmt.Errorf("minimum room members must not be negative, got %d", c.MinRoomMembers)
	}
	if c.AutoCreateRooms && c.MinRoomMembers == 0 {
		return errors.New("auto-created rooms require a minimum room member count")
	}
	if c.DefaultRoomSize > 0 && c.MinRoomMembers > c.DefaultRoomSize {
		return fmt.Errorf("minimum room members (%d) exceeds the default room size (%d)", c.MinRoomMembers, c.DefaultRoomSize)
	}

	for name, d := range map[string]*time.Duration{
		"reconnect wait":          c.ReconnectWait,
		"roomless reconnect wait": c.ReconnectWaitRoomless,
		"empty room pruning":      c.PruneEmptyRooms,
		"room life":               c.RoomLife,
	} {
		if d != nil && *d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, *d)
		}
	}
	return nil
}

// ParseDuration parses an optional duration. "off", "null" and "none" disable the
// setting (nil). A bare integer is read as milliseconds; anything else must be a
// time.ParseDuration string.
func ParseDuration(s string) (*time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "off", "null", "none":
		return nil, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return cloak.Duration(time.Duration(ms) * time.Millisecond), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return cloak.Duration(d), nil
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
