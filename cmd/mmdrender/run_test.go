package main

// Notes:
// - runMain is tested through exit codes and stdout/stderr with fake engines;
//   Chrome is only exercised by the integration suite.
// - Tests that set MMDRENDER_* variables cannot use t.Parallel().

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/internal/assets"
	"github.com/alnah/go-mmdrender/internal/config"
	"github.com/alnah/go-mmdrender/internal/server"
)

// ---------------------------------------------------------------------------
// TestRunMain_Single - One diagram from stdin or a file
// ---------------------------------------------------------------------------

func TestRunMain_Single(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stdin      string
		wantStdout string
	}{
		{"renders svg", "graph TD; A-->B", "<svg>graph TD; A-->B</svg>"},
		{"failure yields empty output", "not a diagram", ""},
		{"empty input yields empty output", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			te := newTestEnv(t, tt.stdin)
			code := runMain([]string{"mmdrender"}, te.Environment)

			if code != ExitSuccess {
				t.Fatalf("exit code = %d, want %d; stderr: %s", code, ExitSuccess, te.stderr.String())
			}
			if got := te.stdout.String(); got != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tt.wantStdout)
			}
			if te.local.closed != 1 {
				t.Errorf("engine closed %d times, want 1", te.local.closed)
			}
		})
	}
}

func TestRunMain_InputAndOutputFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "out", "diagram.svg")
	if err := os.WriteFile(in, []byte("graph LR; X-->Y\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	te := newTestEnv(t, "")
	code := runMain([]string{"mmdrender", "-i", in, "-o", out}, te.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "<svg>graph LR; X-->Y</svg>" {
		t.Errorf("output = %q", data)
	}
	if te.stdout.Len() != 0 {
		t.Errorf("stdout should be empty, got %q", te.stdout.String())
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_Batch - JSON array in, JSON array out
// ---------------------------------------------------------------------------

func TestRunMain_Batch(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t, `["graph TD; A-->B", "oops", "graph LR; C-->D"]`)
	code := runMain([]string{"mmdrender", "--batch", "-w", "2"}, te.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
	}

	var got []string
	if err := json.Unmarshal(te.stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, te.stdout.String())
	}
	want := []string{"<svg>graph TD; A-->B</svg>", "", "<svg>graph LR; C-->D</svg>"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !strings.Contains(te.stdout.String(), "\n  \"<svg>") {
		t.Errorf("output should be pretty-printed without HTML escaping:\n%s", te.stdout.String())
	}
}

func TestRunMain_BatchInvalidJSON(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t, `{"not": "an array"}`)
	code := runMain([]string{"mmdrender", "--batch"}, te.Environment)

	if code != ExitUsage {
		t.Errorf("exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(te.stderr.String(), ErrInvalidBatch.Error()) {
		t.Errorf("stderr should mention %q, got %q", ErrInvalidBatch, te.stderr.String())
	}
	if te.local.calls() != 0 {
		t.Error("engine should not be used for invalid input")
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_Markdown - Every mermaid block of a document
// ---------------------------------------------------------------------------

func TestRunMain_Markdown(t *testing.T) {
	t.Parallel()

	doc := "# Doc\n\n```mermaid\ngraph TD; A-->B\n```\n\n```go\nfunc main() {}\n```\n\n```mermaid\npie\n```\n"
	te := newTestEnv(t, doc)
	code := runMain([]string{"mmdrender", "--markdown"}, te.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
	}
	var got []string
	if err := json.Unmarshal(te.stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got) != 2 || got[0] != "<svg>graph TD; A-->B</svg>" || got[1] != "" {
		t.Errorf("results = %q", got)
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_Remote - --remote bypasses the local browser
// ---------------------------------------------------------------------------

func TestRunMain_Remote(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t, "graph TD")
	code := runMain([]string{"mmdrender", "--remote", "http://render.internal:8080"}, te.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
	}
	if te.remoteURL != "http://render.internal:8080" {
		t.Errorf("remote URL = %q", te.remoteURL)
	}
	if te.remote.calls() != 1 || te.local.calls() != 0 {
		t.Errorf("remote calls = %d, local calls = %d", te.remote.calls(), te.local.calls())
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_ExitCodes - Failure classification
// ---------------------------------------------------------------------------

func TestRunMain_ExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		openErr    error
		wantCode   int
		wantStderr string
	}{
		{
			name:     "unknown flag",
			args:     []string{"--nope"},
			wantCode: ExitUsage,
		},
		{
			name:       "positional argument",
			args:       []string{"diagram.mmd"},
			wantCode:   ExitUsage,
			wantStderr: "use -i",
		},
		{
			name:       "batch and markdown",
			args:       []string{"--batch", "--markdown"},
			wantCode:   ExitUsage,
			wantStderr: "mutually exclusive",
		},
		{
			name:     "server and remote",
			args:     []string{"--server", "--remote", "http://x"},
			wantCode: ExitUsage,
		},
		{
			name:       "bad timeout",
			args:       []string{"-t", "soon"},
			wantCode:   ExitUsage,
			wantStderr: ErrInvalidTimeout.Error(),
		},
		{
			name:     "negative workers",
			args:     []string{"-w", "-1"},
			wantCode: ExitUsage,
		},
		{
			name:     "bad port",
			args:     []string{"-p", "70000"},
			wantCode: ExitUsage,
		},
		{
			name:       "missing input file",
			args:       []string{"-i", "/nonexistent/diagram.mmd"},
			wantCode:   ExitIO,
			wantStderr: ErrReadInput.Error(),
		},
		{
			name:       "missing config",
			args:       []string{"-c", "/nonexistent/mmdrender.yaml"},
			wantCode:   ExitUsage,
			wantStderr: config.ErrConfigNotFound.Error(),
		},
		{
			name:       "browser unavailable",
			openErr:    fmt.Errorf("%w: exec: chrome not found", mmdrender.ErrBrowserConnect),
			wantCode:   ExitBrowser,
			wantStderr: mmdrender.ErrBrowserConnect.Error(),
		},
		{
			name:       "payload unavailable",
			openErr:    fmt.Errorf("loading payload: %w", assets.ErrPayloadNotFound),
			wantCode:   ExitBrowser,
			wantStderr: "hint:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			te := newTestEnv(t, "graph TD")
			te.openErr = tt.openErr
			code := runMain(append([]string{"mmdrender"}, tt.args...), te.Environment)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d; stderr: %s", code, tt.wantCode, te.stderr.String())
			}
			if tt.wantStderr != "" && !strings.Contains(te.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", te.stderr.String(), tt.wantStderr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_InfoCommands - version, help, print-config
// ---------------------------------------------------------------------------

func TestRunMain_InfoCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStdout string
	}{
		{"version command", []string{"version"}, "mmdrender dev"},
		{"version flag", []string{"--version"}, assets.MermaidVersion},
		{"help command", []string{"help"}, "Usage: mmdrender"},
		{"help flag", []string{"--help"}, "--markdown"},
		{"help doctor", []string{"help", "doctor"}, "mmdrender doctor"},
		{"print config", []string{"--print-config", "-p", "9090"}, "port: 9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			te := newTestEnv(t, "")
			code := runMain(append([]string{"mmdrender"}, tt.args...), te.Environment)

			if code != ExitSuccess {
				t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
			}
			if !strings.Contains(te.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", te.stdout.String(), tt.wantStdout)
			}
			if te.local.calls() != 0 {
				t.Error("engine should not be used")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig_Precedence - defaults < file < env < flags
// ---------------------------------------------------------------------------

func TestLoadConfig_Precedence(t *testing.T) {
	// NO t.Parallel() - modifies environment variables

	dir := t.TempDir()
	path := filepath.Join(dir, "mmdrender.yaml")
	content := "server:\n  port: 7000\n  host: 127.0.0.1\nrender:\n  timeout: 5s\n  workers: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MMDRENDER_SERVER_PORT", "7100")
	t.Setenv("MMDRENDER_RENDER_TIMEOUT", "7s")

	flags, _, err := parseFlags([]string{"-c", path, "-t", "9s", "--server"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want file value", cfg.Server.Host)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, want env value 7100", cfg.Server.Port)
	}
	if cfg.Render.Timeout != 9*time.Second {
		t.Errorf("timeout = %v, want flag value 9s", cfg.Render.Timeout)
	}
	if cfg.Render.Workers != 3 {
		t.Errorf("workers = %d, want file value 3", cfg.Render.Workers)
	}
	if cfg.Logging.Level != config.DefaultLogLevel {
		t.Errorf("server log level = %q, want %q", cfg.Logging.Level, config.DefaultLogLevel)
	}
}

func TestLoadConfig_ConfigFromEnv(t *testing.T) {
	// NO t.Parallel() - modifies environment variables

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte("render:\n  maxScale: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvConfigPath, path)

	flags, _, err := parseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Render.MaxScale != 4 {
		t.Errorf("maxScale = %v, want 4", cfg.Render.MaxScale)
	}
}

func TestLoadConfig_LogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"cli default is quiet", nil, cliLogLevel},
		{"server default", []string{"--server"}, config.DefaultLogLevel},
		{"verbose", []string{"-v"}, "debug"},
		{"explicit level wins over verbose", []string{"-v", "--log-level", "error"}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags, _, err := parseFlags(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.Logging.Level != tt.want {
				t.Errorf("level = %q, want %q", cfg.Logging.Level, tt.want)
			}
		})
	}
}

func TestRunMain_FlagsReachEngine(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t, "graph TD")
	code := runMain([]string{"mmdrender", "-t", "45s", "--offline", "--asset-path", "/opt/assets"}, te.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d; stderr: %s", code, te.stderr.String())
	}
	if te.localCfg == nil {
		t.Fatal("local engine was not opened")
	}
	if te.localCfg.Render.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", te.localCfg.Render.Timeout)
	}
	if !te.localCfg.Assets.Offline || te.localCfg.Assets.BasePath != "/opt/assets" {
		t.Errorf("assets = %+v", te.localCfg.Assets)
	}
}

// ---------------------------------------------------------------------------
// TestHintFor - Hints follow the resolved configuration
// ---------------------------------------------------------------------------

func TestHintFor(t *testing.T) {
	t.Parallel()

	offline := config.DefaultConfig()
	offline.Assets.Offline = true
	custom := config.DefaultConfig()
	custom.Server.Port = 9191

	payloadErr := fmt.Errorf("loading payload: %w", assets.ErrPayloadNotFound)
	listenErr := fmt.Errorf("%w: address already in use", server.ErrListen)

	tests := []struct {
		name string
		err  error
		cfg  *config.Config
		want string
	}{
		{"payload offline", payloadErr, offline, "drop --offline"},
		{"payload online", payloadErr, config.DefaultConfig(), "network access"},
		{"payload without config", payloadErr, nil, "network access"},
		{"listen uses configured port", listenErr, custom, "9191"},
		{"listen without config", listenErr, nil, "8080"},
		{"unrelated", errors.New("boom"), offline, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := hintFor(tt.err, &cliFlags{}, tt.cfg)
			if tt.want == "" {
				if got != "" {
					t.Errorf("hintFor() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("hintFor() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestRunMain_OfflineHintFromConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mmdrender.yaml")
	if err := os.WriteFile(path, []byte("assets:\n  offline: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	te := newTestEnv(t, "graph TD")
	te.openErr = fmt.Errorf("loading payload: %w", assets.ErrPayloadNotFound)
	code := runMain([]string{"mmdrender", "-c", path}, te.Environment)

	if code != ExitBrowser {
		t.Errorf("exit code = %d, want %d", code, ExitBrowser)
	}
	if !strings.Contains(te.stderr.String(), "drop --offline") {
		t.Errorf("stderr = %q, want the offline hint", te.stderr.String())
	}
}
