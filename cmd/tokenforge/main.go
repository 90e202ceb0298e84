package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/tokenforge/internal/api"
	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/commands"
	"github.com/mattjoyce/tokenforge/internal/config"
	"github.com/mattjoyce/tokenforge/internal/lock"
	"github.com/mattjoyce/tokenforge/internal/log"
	"github.com/mattjoyce/tokenforge/internal/native"
	"github.com/mattjoyce/tokenforge/internal/storage"
	"github.com/mattjoyce/tokenforge/internal/window"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			return 0
		}
		return runStart(args)
	case "invoke":
		if hasHelpFlag(args) {
			printInvokeHelp()
			return 0
		}
		return runInvoke(args)
	case "commands":
		return runCommands(args)
	case "inspect":
		if hasHelpFlag(args) {
			printInspectHelp()
			return 0
		}
		return runInspect(args)
	case "status":
		return runStatus(args)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: tokenforge version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("tokenforge %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`tokenforge - desktop shell backend for the Token Forge web view

Usage:
  tokenforge <command> [flags]

Shell:
  start             Run the shell in the foreground
  status            Show health of a running shell
  watch             Live view of a window's event stream

Commands:
  commands          List the commands the web view can invoke
  invoke <name>     Invoke a command, e.g. hello_world
  inspect           Summarize recent invocations from the journal

Config:
  config check      Validate syntax and integrity
  config hash       Write the BLAKE3 sidecar for a config file

General:
  version           Show version information
  help              Show this help message
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if isHelpToken(arg) {
			return true
		}
	}
	return false
}

func printStartHelp() {
	fmt.Println("Usage: tokenforge start [--config PATH]")
	fmt.Println("Run the shell: register commands, open the main window and serve the web view.")
	fmt.Println("Without --config, $TOKENFORGE_CONFIG, ~/.config/tokenforge/config.yaml and ./config.yaml are tried in order.")
}

// resolveConfig loads path, or the discovered config, or the defaults.
func resolveConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DiscoverConfigPath()
	}
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

// shell is the assembled runtime: everything start needs before listening.
type shell struct {
	registry *command.Registry
	windows  *window.Manager
	source   native.Source
	journal  *storage.Journal
	server   *api.Server
}

// buildShell wires the runtime from cfg. Duplicate command registration and
// an unopenable main window are fatal; an unavailable native backend is not.
func buildShell(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*shell, error) {
	source, err := native.Open(ctx, native.Options{
		Backend:      cfg.Native.Backend,
		WasmModule:   cfg.Native.WasmModule,
		WasmExport:   cfg.Native.WasmExport,
		MaxTextBytes: cfg.Native.MaxTextBytes,
	})
	if err != nil {
		logger.Warn("native backend unavailable, hello_world will fail", "backend", cfg.Native.Backend, "error", err)
		source = native.Unavailable(err)
	}

	builder := command.NewBuilder()
	if err := commands.Register(builder, source); err != nil {
		_ = source.Close(ctx)
		return nil, fmt.Errorf("register commands: %w", err)
	}
	registry := builder.Build()
	for _, d := range registry.Commands() {
		logger.Info("command registered", "command", d.Name, "returns", d.Returns)
	}

	windows := window.NewManager(cfg.Events.Buffer)
	if _, err := windows.Open(cfg.Shell.MainWindow, cfg.Shell.MainTitle); err != nil {
		_ = source.Close(ctx)
		return nil, fmt.Errorf("open main window: %w", err)
	}

	sh := &shell{registry: registry, windows: windows, source: source}

	// A nil *storage.Journal must not reach api.New as a non-nil interface.
	var journal api.Journal
	if cfg.Journal.Enabled {
		j, err := storage.OpenJournal(ctx, cfg.Journal.MaxEntries)
		if err != nil {
			sh.close(ctx)
			return nil, fmt.Errorf("open journal: %w", err)
		}
		sh.journal = j
		journal = j
	}

	sh.server = api.New(api.Config{
		Listen:            cfg.Shell.Listen,
		AuthToken:         cfg.Shell.AuthToken,
		FrontendDir:       cfg.Shell.FrontendDir,
		MainWindow:        cfg.Shell.MainWindow,
		ConfigFingerprint: cfg.Fingerprint,
		Version:           currentVersionInfo().Version,
	}, registry, windows, journal, log.WithComponent("api"))

	return sh, nil
}

func (s *shell) close(ctx context.Context) {
	s.windows.CloseAll()
	if s.journal != nil {
		_ = s.journal.Close()
	}
	_ = s.source.Close(ctx)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	if cfg.Path == "" {
		logger.Info("tokenforge starting", "version", version, "config", "defaults")
	} else {
		logger.Info("tokenforge starting", "version", version, "config", cfg.Path, "fingerprint", cfg.Fingerprint)
	}

	pidLock, err := lock.AcquirePIDLock(cfg.Shell.LockPath)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			logger.Error("another instance is running", "path", cfg.Shell.LockPath, "error", err)
		} else {
			logger.Error("failed to acquire PID lock", "path", cfg.Shell.LockPath, "error", err)
		}
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh, err := buildShell(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer sh.close(context.Background())
	logger.Info("main window opened", "window", cfg.Shell.MainWindow, "title", cfg.Shell.MainTitle)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := sh.server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("tokenforge running (press Ctrl+C to stop)", "listen", cfg.Shell.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("tokenforge stopped")
	return 0
}
