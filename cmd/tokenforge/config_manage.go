package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattjoyce/tokenforge/internal/config"
	"github.com/mattjoyce/tokenforge/internal/doctor"
	"github.com/mattjoyce/tokenforge/internal/native"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "hash", "lock":
		if hasHelpFlag(actionArgs) {
			printConfigHashHelp()
			return 0
		}
		return runConfigHash(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: tokenforge config <check|hash> [flags]")
	fmt.Fprintln(w, "  check   Validate syntax and integrity")
	fmt.Fprintln(w, "  hash    Write the BLAKE3 sidecar (<config>.b3) for a config file")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: tokenforge config check [--config PATH] [--json] [--probe=false]")
	fmt.Println("Validate configuration syntax and integrity, then probe the native backend and frontend bundle.")
}

func printConfigHashHelp() {
	fmt.Println("Usage: tokenforge config hash [--config PATH] [--dry-run]")
	fmt.Println("Authorize the current configuration by writing its BLAKE3 sidecar.")
}

// targetConfigFile resolves --config or discovery to a file path.
func targetConfigFile(path string) (string, error) {
	if path == "" {
		path = config.DiscoverConfigPath()
	}
	if path == "" {
		return "", fmt.Errorf("no config file found; pass --config or set TOKENFORGE_CONFIG")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		abs = filepath.Join(abs, "config.yaml")
	}
	return abs, nil
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	probe := fs.Bool("probe", true, "Call the native routine once to check its contract")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target, err := targetConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}

	// Load covers syntax and the integrity sidecar; doctor covers the rest.
	cfg, err := config.Load(target)
	if err != nil {
		if *jsonOut {
			out, _ := doctor.FormatJSON(&doctor.Result{
				Errors: []doctor.Issue{{Category: "load", Message: err.Error()}},
			})
			fmt.Println(out)
		} else {
			fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		}
		return 1
	}

	var open doctor.Opener
	if *probe {
		open = native.Open
	}
	result := doctor.New(cfg, open).Validate(context.Background())

	if _, ok, _ := config.LoadChecksum(target); !ok {
		result.Warnings = append(result.Warnings, doctor.Issue{
			Category: "integrity",
			Field:    filepath.Base(config.ChecksumPath(target)),
			Message:  "no integrity sidecar; run 'tokenforge config hash' to create one",
		})
	}

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Printf("Config: %s\nFingerprint: %s\n", target, cfg.Fingerprint)
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Print the hash without writing the sidecar")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target, err := targetConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Refuse to authorize a file that would not load anyway.
	data, err := os.ReadFile(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Parse(data)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to hash invalid config %s: %v\n", target, err)
		return 1
	}

	if *dryRun {
		fmt.Printf("DRY-RUN %s: %s\n", filepath.Base(config.ChecksumPath(target)), config.Fingerprint(data))
		return 0
	}

	hash, err := config.WriteChecksum(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("HASH %s: %s\n", filepath.Base(target), hash)
	fmt.Printf("Wrote %s\n", config.ChecksumPath(target))
	return 0
}
