package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mmdrender [flags]")
	fmt.Fprintln(w, "       mmdrender <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render Mermaid diagrams to SVG, once from a file or stdin, or as an HTTP server.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  doctor     Check Chrome and the Mermaid library")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -i, --input <path>        Input file (stdin if omitted)")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (stdout if omitted)")
	fmt.Fprintln(w, "      --batch               Input is a JSON array; output is a JSON array")
	fmt.Fprintln(w, "      --markdown            Input is Markdown; render every ```mermaid block")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent renders in batch mode (0 = auto)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --server              Serve POST /render, /healthz and /metrics")
	fmt.Fprintln(w, "      --host <addr>         Listen address (default 0.0.0.0)")
	fmt.Fprintln(w, "  -p, --port <n>            Listen port (default 8080)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Renderer:")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-render timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "      --asset-path <dir>    Override assets; may hold mermaid.min.js")
	fmt.Fprintln(w, "      --offline             Never download the Mermaid library")
	fmt.Fprintln(w, "      --remote <url>        Render through a running server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --print-config        Print the effective configuration and exit")
	fmt.Fprintln(w, "      --log-level <s>       debug, info, warn, error")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging")
	fmt.Fprintln(w, "      --version             Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A diagram that fails to render produces empty output (\"\" in batch mode).")
	fmt.Fprintln(w, "Settings may also come from MMDRENDER_* environment variables;")
	fmt.Fprintln(w, "run 'mmdrender --print-config' to see the effective values.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mmdrender doctor [--json] [-c <config>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that Chrome can be found and the Mermaid library is available")
	fmt.Fprintln(w, "without downloading anything.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Machine-readable output")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mmdrender version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mmdrender help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
