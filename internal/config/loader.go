package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file or a directory holding
// config.yaml. Unset keys keep their Defaults() value.
func Load(configPath string) (*Config, error) {
	// Resolve to absolute path for consistent relative path resolution
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		// Directory provided - look for config.yaml inside
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", absPath, err)
	}

	// Hash-verify the raw bytes before anything is interpreted
	if err := verifyChecksum(absPath, data); err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}
	cfg.Path = absPath
	cfg.Fingerprint = Fingerprint(data)
	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML over Defaults() after expanding ${VAR} references.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return cfg, nil
}

// DiscoverConfigPath finds a config file by checking standard locations.
// Priority order: $TOKENFORGE_CONFIG, ~/.config/tokenforge/config.yaml, ./config.yaml.
// An empty result means none exists and defaults apply.
func DiscoverConfigPath() string {
	if path := os.Getenv("TOKENFORGE_CONFIG"); path != "" {
		return path
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "tokenforge", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig
		}
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	return ""
}

// resolvePaths makes file paths relative to the config file's directory.
func resolvePaths(cfg *Config, baseDir string) {
	for _, p := range []*string{&cfg.Shell.FrontendDir, &cfg.Shell.LockPath, &cfg.Native.WasmModule} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR}
		varName := envVarPattern.FindStringSubmatch(match)[1]

		// Look up environment variable
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := strings.ToLower(cfg.Service.LogFormat); f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Shell.Listen == "" {
		return fmt.Errorf("shell.listen is required")
	}
	if cfg.Shell.MainWindow == "" {
		return fmt.Errorf("shell.main_window is required")
	}
	if cfg.Shell.LockPath == "" {
		return fmt.Errorf("shell.lock_path is required")
	}
	if envVarPattern.MatchString(cfg.Shell.AuthToken) {
		return fmt.Errorf("shell.auth_token references an unset environment variable: %s", cfg.Shell.AuthToken)
	}

	switch cfg.Native.Backend {
	case "cgo":
	case "wasm":
		if cfg.Native.WasmModule == "" {
			return fmt.Errorf("native.wasm_module is required when native.backend is wasm")
		}
		if cfg.Native.WasmExport == "" {
			return fmt.Errorf("native.wasm_export is required when native.backend is wasm")
		}
	default:
		return fmt.Errorf("native.backend must be cgo or wasm (got %q)", cfg.Native.Backend)
	}
	if cfg.Native.MaxTextBytes <= 0 {
		return fmt.Errorf("native.max_text_bytes must be positive")
	}

	if cfg.Events.Buffer <= 0 {
		return fmt.Errorf("events.buffer must be positive")
	}
	if cfg.Journal.Enabled && cfg.Journal.MaxEntries <= 0 {
		return fmt.Errorf("journal.max_entries must be positive when the journal is enabled")
	}

	return nil
}

// Validate runs the checks Load applies, for configs built in code.
func Validate(cfg *Config) error {
	return validate(cfg)
}
