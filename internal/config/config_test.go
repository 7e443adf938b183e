package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single value", input: "value1", expected: []string{"value1"}},
		{name: "multiple values", input: "value1, value2 ,value3", expected: []string{"value1", "value2", "value3"}},
		{name: "quoted values", input: `"10.0.0.0/8", '::1/128'`, expected: []string{"10.0.0.0/8", "::1/128"}},
		{name: "empty entries dropped", input: "a,, ,b", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func noDotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MARKSYNC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadServer(t *testing.T) {
	noDotEnv(t)
	t.Setenv("MARKSYNC_JWT_SECRET", "s3cret")
	t.Setenv("MARKSYNC_STORE", "memory")
	t.Setenv("MARKSYNC_VERSION_HISTORY", "7")
	t.Setenv("MARKSYNC_ALLOWED_CIDRS", "10.0.0.0/8, 127.0.0.1")

	cfg := LoadServer()
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.Store != "memory" || cfg.Redis.Addr != "" {
		t.Errorf("Store = %q, Redis.Addr = %q", cfg.Store, cfg.Redis.Addr)
	}
	if cfg.VersionHistory != 7 {
		t.Errorf("VersionHistory = %d, want 7", cfg.VersionHistory)
	}
	if cfg.TombstoneMaxAge != 30*24*time.Hour {
		t.Errorf("TombstoneMaxAge = %v", cfg.TombstoneMaxAge)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v", cfg.AllowedCIDRS)
	}
}

func TestLoadServerPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"MARKSYNC_STORE": "memory"}},
		{name: "unknown store", env: map[string]string{"MARKSYNC_JWT_SECRET": "x", "MARKSYNC_STORE": "sqlite"}},
		{name: "redis without addr", env: map[string]string{"MARKSYNC_JWT_SECRET": "x", "MARKSYNC_STORE": "redis"}},
		{name: "redis without password", env: map[string]string{
			"MARKSYNC_JWT_SECRET": "x",
			"MARKSYNC_STORE":      "redis",
			"MARKSYNC_REDIS_ADDR": "localhost:6379",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noDotEnv(t)
			t.Setenv("MARKSYNC_JWT_SECRET", "")
			t.Setenv("MARKSYNC_REDIS_ADDR", "")
			t.Setenv("MARKSYNC_REDIS_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("LoadServer() should have panicked")
				}
			}()
			LoadServer()
		})
	}
}

func TestLoadAgent(t *testing.T) {
	noDotEnv(t)
	t.Setenv("MARKSYNC_REMOTE_URL", "https://sync.example.com/")
	t.Setenv("MARKSYNC_TOKEN", "tok")
	t.Setenv("MARKSYNC_DEVICE_NAME", "laptop")
	t.Setenv("MARKSYNC_STATE_BACKEND", "redis")
	t.Setenv("MARKSYNC_REDIS_ADDR", "localhost:6379")
	t.Setenv("MARKSYNC_REDIS_PASSWORD_REQUIRED", "false")
	t.Setenv("MARKSYNC_DEBOUNCE", "500ms")

	cfg := LoadAgent()
	if cfg.RemoteURL != "https://sync.example.com" {
		t.Errorf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.DeviceName != "laptop" || cfg.SourceID != "default" {
		t.Errorf("DeviceName = %q, SourceID = %q", cfg.DeviceName, cfg.SourceID)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Debounce)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want loopback defaults", cfg.AllowedCIDRS)
	}
}

func TestLoadAgentReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(path, []byte("MARKSYNC_SOURCE_ID=work\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("MARKSYNC_ENV_FILE", path)
	t.Setenv("MARKSYNC_STATE_BACKEND", "file")
	// godotenv never overrides, so make sure the variable starts unset
	t.Setenv("MARKSYNC_SOURCE_ID", "")
	if err := os.Unsetenv("MARKSYNC_SOURCE_ID"); err != nil {
		t.Fatalf("failed to unset env var: %v", err)
	}

	cfg := LoadAgent()
	if cfg.SourceID != "work" {
		t.Errorf("SourceID = %q, want work", cfg.SourceID)
	}
}
