package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared by every mode.
type commonFlags struct {
	config   string
	logLevel string
	verbose  bool
}

// ioFlags holds one-shot and batch I/O flags.
type ioFlags struct {
	input    string
	output   string
	batch    bool
	markdown bool
	workers  int
}

// serverFlags holds HTTP server flags.
type serverFlags struct {
	enabled bool
	host    string
	port    int
}

// rendererFlags holds flags forwarded to the renderer or the remote client.
type rendererFlags struct {
	timeout   string
	assetPath string
	offline   bool
	remote    string
}

// cliFlags holds every flag of the root command.
type cliFlags struct {
	common      commonFlags
	io          ioFlags
	server      serverFlags
	renderer    rendererFlags
	version     bool
	printConfig bool

	// changed records flags set on the command line, so only those
	// override the config file and the environment.
	changed map[string]bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// addIOFlags adds input/output flags to a FlagSet.
func addIOFlags(fs *flag.FlagSet, f *ioFlags) {
	fs.StringVarP(&f.input, "input", "i", "", "input file (stdin if omitted)")
	fs.StringVarP(&f.output, "output", "o", "", "output file (stdout if omitted)")
	fs.BoolVar(&f.batch, "batch", false, "input is a JSON array of diagrams")
	fs.BoolVar(&f.markdown, "markdown", false, "input is Markdown; render every mermaid block")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent renders in batch mode (0 = auto)")
}

// addServerFlags adds server flags to a FlagSet.
func addServerFlags(fs *flag.FlagSet, f *serverFlags) {
	fs.BoolVar(&f.enabled, "server", false, "run the HTTP server")
	fs.StringVar(&f.host, "host", "", "listen address (default 0.0.0.0)")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port (default 8080)")
}

// addRendererFlags adds renderer flags to a FlagSet.
func addRendererFlags(fs *flag.FlagSet, f *rendererFlags) {
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-render timeout (e.g., 30s, 2m)")
	fs.StringVar(&f.assetPath, "asset-path", "", "directory overriding assets, may hold mermaid.min.js")
	fs.BoolVar(&f.offline, "offline", false, "never download the Mermaid library")
	fs.StringVar(&f.remote, "remote", "", "render through a running server at this URL")
}

// parseFlags parses root command flags and returns positional args.
// args excludes the program name.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("mmdrender", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // runMain reports errors itself
	f := &cliFlags{changed: make(map[string]bool)}

	addCommonFlags(fs, &f.common)
	addIOFlags(fs, &f.io)
	addServerFlags(fs, &f.server)
	addRendererFlags(fs, &f.renderer)
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		f.changed[fl.Name] = true
	})

	return f, fs.Args(), nil
}
