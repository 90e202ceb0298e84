// Package doctor checks a tokenforge configuration and probes the
// environment it will run in: the native backend, the frontend bundle and
// the instance lock.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattjoyce/tokenforge/internal/config"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/lock"
	"github.com/mattjoyce/tokenforge/internal/native"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	// NativeText is what the native routine returned during the probe.
	NativeText string `json:"native_text,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Opener builds the native source to probe.
type Opener func(ctx context.Context, opts native.Options) (native.Source, error)

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg  *config.Config
	open Opener
}

// New creates a Doctor. A nil open skips the native probe.
func New(cfg *config.Config, open Opener) *Doctor {
	return &Doctor{cfg: cfg, open: open}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateNative(ctx, r)
	d.validateFrontend(r)
	d.warnOpenListener(r)
	d.warnMissingEnvVars(r)
	d.warnRunningInstance(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

// validateNative calls the configured routine once and checks its contract.
func (d *Doctor) validateNative(ctx context.Context, r *Result) {
	n := d.cfg.Native
	if n.Backend == native.BackendWasm && n.WasmModule != "" {
		if _, err := os.Stat(n.WasmModule); err != nil {
			d.addError(r, "native", "native.wasm_module", fmt.Sprintf("wasm module not readable: %v", err))
			return
		}
	}
	if d.open == nil {
		return
	}

	src, err := d.open(ctx, native.Options{
		Backend:      n.Backend,
		WasmModule:   n.WasmModule,
		WasmExport:   n.WasmExport,
		MaxTextBytes: n.MaxTextBytes,
	})
	if err != nil {
		d.addError(r, "native", "native.backend", fmt.Sprintf("backend %q unavailable: %v", n.Backend, err))
		return
	}
	defer src.Close(ctx)

	text, err := src.FetchText(ctx)
	if err != nil {
		msg := fmt.Sprintf("routine failed [%s]: %v", fault.KindOf(err), err)
		if off, ok := fault.OffsetOf(err); ok {
			msg = fmt.Sprintf("routine returned invalid UTF-8 at byte %d", off)
		}
		d.addError(r, "native", "", msg)
		return
	}
	if text == "" {
		d.addWarning(r, "native", "", "routine returned an empty string")
	}
	r.NativeText = text
}

func (d *Doctor) validateFrontend(r *Result) {
	dir := d.cfg.Shell.FrontendDir
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		d.addError(r, "frontend", "shell.frontend_dir", fmt.Sprintf("%s is not a directory", dir))
		return
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		d.addWarning(r, "frontend", "shell.frontend_dir", "no index.html; the web view will have nothing to load")
	}
}

// warnOpenListener flags an unauthenticated listener reachable off-host.
func (d *Doctor) warnOpenListener(r *Result) {
	if d.cfg.Shell.AuthToken != "" {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.Shell.Listen)
	if err != nil {
		d.addError(r, "shell", "shell.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.Shell.Listen, err))
		return
	}
	if host == "localhost" {
		return
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return
	}
	d.addWarning(r, "shell", "shell.auth_token",
		fmt.Sprintf("listening on %s without an auth token", d.cfg.Shell.Listen))
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// warnMissingEnvVars reports ${VAR} references left unexpanded.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	fields := map[string]string{
		"shell.auth_token":   d.cfg.Shell.AuthToken,
		"shell.frontend_dir": d.cfg.Shell.FrontendDir,
		"native.wasm_module": d.cfg.Native.WasmModule,
	}
	for field, value := range fields {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			d.addWarning(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

// warnRunningInstance reports a live holder of the instance lock.
func (d *Doctor) warnRunningInstance(r *Result) {
	path := d.cfg.Shell.LockPath
	if _, ok := lock.HolderPID(path); !ok {
		return
	}
	l, err := lock.AcquirePIDLock(path)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			d.addWarning(r, "lock", "shell.lock_path", err.Error())
		}
		return
	}
	_ = l.Release()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}
	if r.NativeText != "" {
		fmt.Fprintf(&b, "  native routine: %q\n", r.NativeText)
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
