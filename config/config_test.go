package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/flowkit/logger"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	tests := []struct {
		name       string
		cfg        ServiceConfig
		wantEnv    string
		wantDebug  bool
		wantLevel  string
		wantFormat string
	}{
		{"empty is development", ServiceConfig{}, "development", true, "debug", "console"},
		{"production logs json", ServiceConfig{Environment: "production"}, "production", false, "info", "json"},
		{"staging keeps console", ServiceConfig{Environment: "staging"}, "staging", false, "info", "console"},
		{"debug flag lowers level", ServiceConfig{Environment: "production", Debug: true}, "production", true, "debug", "json"},
		{"explicit logging wins", ServiceConfig{Environment: "production", Logging: logger.Config{Level: "warn", Format: "console"}}, "production", false, "warn", "console"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			if cfg.Environment != tt.wantEnv || cfg.Debug != tt.wantDebug {
				t.Errorf("environment=%q debug=%v, want %q %v", cfg.Environment, cfg.Debug, tt.wantEnv, tt.wantDebug)
			}
			if cfg.Logging.Level != tt.wantLevel || cfg.Logging.Format != tt.wantFormat {
				t.Errorf("logging level=%q format=%q, want %q %q", cfg.Logging.Level, cfg.Logging.Format, tt.wantLevel, tt.wantFormat)
			}
		})
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", ServiceConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid staging", ServiceConfig{Name: "svc", Environment: "staging"}, false, ""},
		{"valid production", ServiceConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfig_DecodesDurationsAndSquash(t *testing.T) {
	path := writeFile(t, "config.yml", `
name: flowkit
environment: staging
engine:
  max_parallel: 4
tasks:
  poll_interval: 250ms
  record_ttl: 1h30m
`)
	type tasksSection struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		RecordTTL    time.Duration `mapstructure:"record_ttl"`
	}
	var cfg struct {
		ServiceConfig `mapstructure:",squash"`
		Engine        struct {
			MaxParallel int `mapstructure:"max_parallel"`
		} `mapstructure:"engine"`
		Tasks tasksSection `mapstructure:"tasks"`
	}
	if err := LoadConfig("flowkit", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "flowkit" || cfg.Environment != "staging" || cfg.Engine.MaxParallel != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Tasks.PollInterval != 250*time.Millisecond || cfg.Tasks.RecordTTL != 90*time.Minute {
		t.Errorf("tasks = %+v", cfg.Tasks)
	}
}

func TestLoadConfig_MissingFileIsEmpty(t *testing.T) {
	var cfg ServiceConfig
	if err := LoadConfig("flowkit", &cfg, WithConfigFile("/nonexistent/config.yml")); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Name != "" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	const key = "FLOWKIT_TEST_ENVFILE_NAME"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	env := writeFile(t, ".env", key+"=from-dotenv\n")

	var cfg struct {
		Test struct {
			Envfile struct {
				Name string `mapstructure:"name"`
			} `mapstructure:"envfile"`
		} `mapstructure:"test"`
	}
	err := LoadConfig("flowkit", &cfg,
		WithConfigFile("/nonexistent/config.yml"), WithEnvFile(env), WithEnvPrefix("FLOWKIT"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Test.Envfile.Name != "from-dotenv" {
		t.Errorf("name = %q", cfg.Test.Envfile.Name)
	}
}

type fakeFS map[string]bool

func (f fakeFS) Exists(p string) bool { return f[p] }
func (f fakeFS) LoadEnv(string) error { return nil }

func TestResolver_SearchOrder(t *testing.T) {
	tests := []struct {
		name       string
		files      fakeFS
		opts       LoaderConfig
		wantConfig string
		wantEnv    string
	}{
		{"nothing found", fakeFS{}, LoaderConfig{}, "", ""},
		{
			"cmd dir beats config dir",
			fakeFS{"./cmd/flowkit/config.yml": true, "./config/config.yml": true},
			LoaderConfig{}, "./cmd/flowkit/config.yml", "",
		},
		{
			"service env file beats plain .env anywhere",
			fakeFS{"./cmd/flowkit/.env": true, "./.env.flowkit": true},
			LoaderConfig{}, "", "./.env.flowkit",
		},
		{
			"parent directories are searched",
			fakeFS{"../config/config.yml": true},
			LoaderConfig{}, "../config/config.yml", "",
		},
		{
			"explicit paths skip the search",
			fakeFS{"./cmd/flowkit/config.yml": true},
			LoaderConfig{ConfigFile: "/etc/flowkit.yml", EnvFile: "/etc/flowkit.env"},
			"/etc/flowkit.yml", "/etc/flowkit.env",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&Resolver{FileSystem: tt.files}).ResolveFiles("flowkit", tt.opts)
			if got.ConfigFile != tt.wantConfig || got.EnvFile != tt.wantEnv {
				t.Errorf("resolved = %+v, want %q %q", got, tt.wantConfig, tt.wantEnv)
			}
		})
	}
}

func TestLoadConfigEnvPrefixOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	yamlContent := `
name: flowkit
server:
  port: 8080
  host: 0.0.0.0
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOWKIT_SERVER_PORT", "9191")
	t.Setenv("SERVER_HOST", "ignored.example")

	type serverSection struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
	}
	type appConfig struct {
		ServiceConfig `mapstructure:",squash"`
		Server        serverSection `mapstructure:"server"`
	}

	var cfg appConfig
	if err := LoadConfig("flowkit", &cfg, WithConfigFile(configPath), WithEnvPrefix("FLOWKIT")); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "flowkit" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unprefixed env should be ignored, host = %q", cfg.Server.Host)
	}
}

func TestLoadConfigBrokenFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg struct{}
	if err := LoadConfig("flowkit", &cfg, WithConfigFile(configPath)); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	variants := generateEnvKeyVariants("AUTH_JWT_SECRET")
	for _, want := range []string{"auth_jwt_secret", "auth.jwt.secret", "auth.jwt_secret"} {
		found := false
		for _, v := range variants {
			if v == want {
				found = true
			}
		}
		if !found {
			t.Errorf("variants %v missing %q", variants, want)
		}
	}
	if got := generateEnvKeyVariants("PORT"); len(got) != 1 || got[0] != "port" {
		t.Errorf("single part = %v", got)
	}
}

func TestWithEnvPrefixOption(t *testing.T) {
	var lc LoaderConfig
	WithEnvPrefix("flowkit_")(&lc)
	if lc.EnvPrefix != "FLOWKIT" {
		t.Errorf("EnvPrefix = %q", lc.EnvPrefix)
	}
}
