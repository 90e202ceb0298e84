package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/mattjoyce/tokenforge/internal/client"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/inspect"
	"github.com/mattjoyce/tokenforge/internal/protocol"
	"github.com/mattjoyce/tokenforge/internal/tui/watch"
)

const defaultAPIURL = "http://127.0.0.1:1430"

// remoteFlags registers the flags shared by every command that talks to a
// running shell.
func remoteFlags(fs *flag.FlagSet) (apiURL, apiKey *string) {
	apiURL = fs.String("api-url", envOr("TOKENFORGE_API_URL", defaultAPIURL), "Shell API URL")
	apiKey = fs.String("api-key", os.Getenv("TOKENFORGE_API_KEY"), "API Bearer Token")
	return apiURL, apiKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printInvokeHelp() {
	fmt.Println("Usage: tokenforge invoke <command> [--window LABEL] [--args JSON] [--json] [--api-url URL] [--api-key KEY]")
	fmt.Println("Invoke a registered command on a running shell.")
	fmt.Println()
	fmt.Println("Exit codes: 0 ok, 1 usage or transport error, 2 the command reported a failure.")
}

func runInvoke(args []string) int {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	apiURL, apiKey := remoteFlags(fs)
	windowLabel := fs.String("window", "", "Invoking window (default: the shell's main window)")
	rawArgs := fs.String("args", "", "Command arguments as a JSON object")
	jsonOut := fs.Bool("json", false, "Print the raw response envelope")

	// Allow the command name before or after flags.
	var name string
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		name, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if name == "" && fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	if name == "" {
		printInvokeHelp()
		return 1
	}

	req := protocol.InvokeRequest{ID: uuid.NewString(), Window: *windowLabel}
	if *rawArgs != "" {
		if !json.Valid([]byte(*rawArgs)) {
			fmt.Fprintln(os.Stderr, "Error: --args is not valid JSON")
			return 1
		}
		req.Args = json.RawMessage(*rawArgs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.New(*apiURL, *apiKey).Invoke(ctx, name, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invoke failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		if err := protocol.EncodeResponse(os.Stdout, resp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render response: %v\n", err)
			return 1
		}
		if resp.Status == protocol.StatusError {
			return 2
		}
		return 0
	}

	if err := resp.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed [%s]: %s\n", name, fault.KindOf(err), resp.Error)
		if off, ok := fault.OffsetOf(err); ok {
			fmt.Fprintf(os.Stderr, "  at byte offset %d\n", off)
		}
		return 2
	}

	if len(resp.Result) == 0 {
		fmt.Printf("%s: ok\n", name)
		return 0
	}
	if text, err := resp.Text(); err == nil {
		fmt.Println(text)
		return 0
	}
	fmt.Println(string(resp.Result))
	return 0
}

func runCommands(args []string) int {
	fs := flag.NewFlagSet("commands", flag.ContinueOnError)
	apiURL, apiKey := remoteFlags(fs)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmds, err := client.New(*apiURL, *apiKey).Commands(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list commands: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(cmds, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	for _, c := range cmds {
		fmt.Printf("%-28s %-6s %s\n", c.Name, c.Returns, c.Description)
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	apiURL, apiKey := remoteFlags(fs)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := client.New(*apiURL, *apiKey).Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Shell unreachable at %s: %v\n", *apiURL, err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(h, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("status:   %s\n", h.Status)
	fmt.Printf("version:  %s\n", h.Version)
	fmt.Printf("uptime:   %s\n", time.Duration(h.UptimeSeconds)*time.Second)
	fmt.Printf("commands: %d\n", h.CommandsLoaded)
	fmt.Printf("windows:  %d\n", h.WindowsOpen)
	if h.ConfigFingerprint != "" {
		fmt.Printf("config:   %s\n", h.ConfigFingerprint)
	}
	return 0
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	apiURL, apiKey := remoteFlags(fs)
	limit := fs.Int("limit", 50, "Number of recent invocations to include")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --limit must be positive")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := client.New(*apiURL, *apiKey).Invocations(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := inspect.BuildJSONReport(entries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Print(inspect.BuildReport(entries))
	return 0
}

func printInspectHelp() {
	fmt.Println("Usage: tokenforge inspect [--limit N] [--json] [--api-url URL] [--api-key KEY]")
	fmt.Println("Summarize recent invocations from the shell's journal.")
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL, apiKey := remoteFlags(fs)
	windowLabel := fs.String("window", "main", "Window whose events to follow")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(client.New(*apiURL, *apiKey), *windowLabel)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func printWatchHelp() {
	fmt.Println("Usage: tokenforge watch [--window LABEL] [--api-url URL] [--api-key KEY]")
	fmt.Println()
	fmt.Println("Live view of one window's event stream and the route it was last sent to.")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  h                Invoke hello_world")
	fmt.Println("  n                Invoke navigate_to_create_token")
	fmt.Println("  ↑/↓              Scroll the event stream")
}
