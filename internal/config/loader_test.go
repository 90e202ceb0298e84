package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file uses defaults",
			yaml: ``,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Shell.MainWindow != "main" {
					t.Errorf("main_window default not applied: %q", cfg.Shell.MainWindow)
				}
				if cfg.Native.Backend != "cgo" {
					t.Errorf("backend default not applied: %q", cfg.Native.Backend)
				}
				if cfg.Events.Buffer != 64 {
					t.Errorf("events.buffer default not applied: %d", cfg.Events.Buffer)
				}
				if !cfg.Journal.Enabled || cfg.Journal.MaxEntries != 500 {
					t.Error("journal defaults not applied")
				}
			},
		},
		{
			name: "partial config keeps other defaults",
			yaml: `
service:
  log_level: debug
shell:
  listen: 127.0.0.1:9999
  frontend_dir: ui/dist
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "debug" {
					t.Error("log_level not parsed")
				}
				if cfg.Shell.Listen != "127.0.0.1:9999" {
					t.Error("listen not parsed")
				}
				if cfg.Shell.MainTitle != "Token Forge" {
					t.Errorf("main_title default lost: %q", cfg.Shell.MainTitle)
				}
				if !filepath.IsAbs(cfg.Shell.FrontendDir) || !strings.HasSuffix(cfg.Shell.FrontendDir, filepath.Join("ui", "dist")) {
					t.Errorf("frontend_dir not resolved against config dir: %q", cfg.Shell.FrontendDir)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
shell:
  auth_token: ${TOKENFORGE_TEST_TOKEN}
`,
			env: map[string]string{"TOKENFORGE_TEST_TOKEN": "secret123"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Shell.AuthToken != "secret123" {
					t.Errorf("env var not interpolated: %q", cfg.Shell.AuthToken)
				}
			},
		},
		{
			name: "missing env var fails validation",
			yaml: `
shell:
  auth_token: ${TOKENFORGE_MISSING_VAR}
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: invalid
`,
			wantErr: true,
		},
		{
			name: "invalid log format",
			yaml: `
service:
  log_format: xml
`,
			wantErr: true,
		},
		{
			name: "unknown key",
			yaml: `
shell:
  listn: 127.0.0.1:1
`,
			wantErr: true,
		},
		{
			name: "wasm backend requires module",
			yaml: `
native:
  backend: wasm
`,
			wantErr: true,
		},
		{
			name: "wasm backend with module",
			yaml: `
native:
  backend: wasm
  wasm_module: hello.wasm
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if !filepath.IsAbs(cfg.Native.WasmModule) {
					t.Errorf("wasm_module not resolved: %q", cfg.Native.WasmModule)
				}
				if cfg.Native.WasmExport != "get_hello_world" {
					t.Errorf("wasm_export default lost: %q", cfg.Native.WasmExport)
				}
			},
		},
		{
			name: "unknown backend",
			yaml: `
native:
  backend: jni
`,
			wantErr: true,
		},
		{
			name: "non-positive buffer",
			yaml: `
events:
  buffer: 0
`,
			wantErr: true,
		},
		{
			name: "disabled journal skips max_entries check",
			yaml: `
journal:
  enabled: false
  max_entries: 0
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Journal.Enabled {
					t.Error("journal should be disabled")
				}
			},
		},
		{
			name: "malformed yaml",
			yaml: `shell: [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg, err := Load(configPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}

			if cfg.Path != configPath {
				t.Errorf("Path = %q, want %q", cfg.Path, configPath)
			}
			if len(cfg.Fingerprint) != 64 {
				t.Errorf("Fingerprint = %q, want 64 hex chars", cfg.Fingerprint)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("shell:\n  main_window: primary\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Shell.MainWindow != "primary" {
		t.Errorf("main_window = %q, want primary", cfg.Shell.MainWindow)
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for directory without config.yaml")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestDiscoverConfigPathPrefersEnv(t *testing.T) {
	t.Setenv("TOKENFORGE_CONFIG", "/etc/tokenforge/custom.yaml")
	if got := DiscoverConfigPath(); got != "/etc/tokenforge/custom.yaml" {
		t.Errorf("DiscoverConfigPath() = %q", got)
	}
}
