package config

// Config represents the complete tokenforge configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Shell   ShellConfig   `yaml:"shell"`
	Native  NativeConfig  `yaml:"native"`
	Events  EventsConfig  `yaml:"events"`
	Journal JournalConfig `yaml:"journal"`

	// Path is the absolute path of the loaded file, empty for pure defaults.
	Path string `yaml:"-"`
	// Fingerprint is the BLAKE3 hash of the loaded file's bytes.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ShellConfig defines the host runtime: listener, windows and frontend.
type ShellConfig struct {
	Listen      string `yaml:"listen"`
	FrontendDir string `yaml:"frontend_dir,omitempty"`
	MainWindow  string `yaml:"main_window"`
	MainTitle   string `yaml:"main_title"`
	AuthToken   string `yaml:"auth_token,omitempty"`
	LockPath    string `yaml:"lock_path"`
}

// NativeConfig selects the backend that produces hello_world's text.
type NativeConfig struct {
	Backend      string `yaml:"backend"` // cgo | wasm
	WasmModule   string `yaml:"wasm_module,omitempty"`
	WasmExport   string `yaml:"wasm_export,omitempty"`
	MaxTextBytes int    `yaml:"max_text_bytes"`
}

// EventsConfig sizes each window's replay buffer.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// JournalConfig controls the in-memory invocation journal.
type JournalConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// Defaults returns a Config that runs without any file.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "tokenforge",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Shell: ShellConfig{
			Listen:     "127.0.0.1:1430",
			MainWindow: "main",
			MainTitle:  "Token Forge",
			LockPath:   "./tokenforge.lock",
		},
		Native: NativeConfig{
			Backend:      "cgo",
			WasmExport:   "get_hello_world",
			MaxTextBytes: 1 << 20,
		},
		Events: EventsConfig{
			Buffer: 64,
		},
		Journal: JournalConfig{
			Enabled:    true,
			MaxEntries: 500,
		},
	}
}
