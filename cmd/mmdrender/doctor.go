package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mmdrender/internal/assets"
	"github.com/alnah/go-mmdrender/internal/config"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo  `json:"chrome"`
	Payload  payloadInfo `json:"payload"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// payloadInfo holds Mermaid library availability, checked without downloading.
type payloadInfo struct {
	Available bool   `json:"available"`
	Source    string `json:"source,omitempty"` // asset-path or cache
	Version   string `json:"version"`
	CacheDir  string `json:"cache_dir,omitempty"`
	Offline   bool   `json:"offline"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     bool   `json:"no_sandbox"`
	BrowserBin    string `json:"browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	CacheWritable bool `json:"cache_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad flags.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOutput := fs.Bool("json", false, "machine-readable output")
	configName := fs.StringP("config", "c", "", "config file name or path")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printDoctorUsage(env.Stdout)
			return ExitSuccess
		}
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		printDoctorUsage(env.Stderr)
		return ExitUsage
	}

	cfg, err := loadConfig(&cliFlags{common: commonFlags{config: *configName}, changed: map[string]bool{}})
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(cfg *config.Config) *doctorResult {
	result := &doctorResult{
		Status: statusReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  noSandbox(cfg),
			BrowserBin: browserBin(cfg),
		},
	}

	checkChrome(result)
	checkEnvironment(result)
	checkPayload(result, cfg)
	checkSystem(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = statusErrors
	} else if len(result.Warnings) > 0 {
		result.Status = statusWarnings
	}

	return result
}

// browserBin mirrors the launcher: config first, then ROD_BROWSER_BIN.
func browserBin(cfg *config.Config) string {
	if cfg.Browser.Bin != "" {
		return cfg.Browser.Bin
	}
	return os.Getenv("ROD_BROWSER_BIN")
}

// noSandbox mirrors the launcher's sandbox decision.
func noSandbox(cfg *config.Config) bool {
	return cfg.Browser.NoSandbox || os.Getenv("ROD_NO_SANDBOX") == "1"
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		// Use rod's launcher to locate Chrome
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found; rod will download Chromium on first launch (or set MMDRENDER_BROWSER_BIN)")
			return
		}
	}

	// Verify it exists
	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	// Get version by running chrome --version
	cmd := exec.Command(chromePath, "--version") // #nosec G204 -- configured browser binary
	out, err := cmd.Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = !result.Env.NoSandbox
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	// Detect container (multi-signal approach)
	result.Env.Container, result.Env.ContainerHint = isContainer()

	// Detect CI environments
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	// Launcher disables the sandbox itself under CI=true
	ciHandled := os.Getenv("CI") == "true"
	if (result.Env.Container || result.Env.CI) && !result.Env.NoSandbox && !ciHandled {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but the Chrome sandbox is enabled. Set MMDRENDER_BROWSER_NO_SANDBOX=true")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	// Explicit override (highest priority)
	if os.Getenv("MMDRENDER_CONTAINER") == "1" {
		return true, "MMDRENDER_CONTAINER=1"
	}
	// Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn / general container indicator
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkPayload looks for the Mermaid library locally. A missing library is
// only an error in offline mode; otherwise the first render downloads it.
func checkPayload(result *doctorResult, cfg *config.Config) {
	result.Payload.Version = assets.MermaidVersion
	result.Payload.Offline = cfg.Assets.Offline
	result.Payload.CacheDir = cacheDir(cfg)

	payload, err := assets.LoadPayload(assets.PayloadOptions{
		BasePath: cfg.Assets.BasePath,
		CacheDir: cfg.Assets.CacheDir,
		URL:      cfg.Assets.PayloadURL,
		Offline:  true,
	})
	switch {
	case err == nil:
		result.Payload.Available = true
		result.Payload.Source = payload.Source
	case !errors.Is(err, assets.ErrPayloadNotFound):
		result.Errors = append(result.Errors, fmt.Sprintf("Mermaid assets: %v", err))
	case cfg.Assets.Offline:
		result.Errors = append(result.Errors,
			"Mermaid library not available and offline mode is on; put mermaid.min.js in the asset path")
	default:
		result.Warnings = append(result.Warnings,
			"Mermaid library not cached yet; it will be downloaded on first start")
	}
}

func cacheDir(cfg *config.Config) string {
	if cfg.Assets.CacheDir != "" {
		return cfg.Assets.CacheDir
	}
	return assets.DefaultCacheDir()
}

// checkSystem verifies the cache directory can receive the downloaded library.
func checkSystem(result *doctorResult) {
	dir := result.Payload.CacheDir
	if dir == "" || dir == "-" {
		return
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Cache directory not writable: %s", dir))
		return
	}
	testFile := filepath.Join(dir, ".mmdrender-doctor-"+strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Cache directory not writable: %s", dir))
		return
	}
	_ = os.Remove(testFile)
	result.System.CacheWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "mmdrender doctor")
	fmt.Fprintln(w)

	// Chrome section
	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled")
		}
	} else {
		fmt.Fprintln(w, "  [WARN] Not found")
	}
	fmt.Fprintln(w)

	// Payload section
	fmt.Fprintln(w, "Mermaid library")
	fmt.Fprintf(w, "  [OK] Version: %s\n", r.Payload.Version)
	if r.Payload.Available {
		fmt.Fprintf(w, "  [OK] Available from %s\n", r.Payload.Source)
	} else {
		fmt.Fprintln(w, "  [WARN] Not available locally")
	}
	fmt.Fprintln(w)

	// Environment section
	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	// System section
	fmt.Fprintln(w, "System")
	if r.System.CacheWritable {
		fmt.Fprintf(w, "  [OK] Cache directory: %s\n", r.Payload.CacheDir)
	} else {
		fmt.Fprintln(w, "  [WARN] Cache directory: unavailable")
	}
	fmt.Fprintln(w)

	// Warnings
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	// Errors
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	// Final status
	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to render")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
