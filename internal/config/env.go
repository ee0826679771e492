package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment overrides, e.g. MMDRENDER_SERVER_PORT.
const EnvPrefix = "mmdrender"

// EnvConfigPath names the config file to load when --config is not given.
const EnvConfigPath = "MMDRENDER_CONFIG"

// ApplyEnv overlays MMDRENDER_* variables on cfg. Unset variables leave
// fields untouched, so file values survive.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidValue, err)
	}
	return nil
}

// KnownEnvVars lists every variable ApplyEnv understands plus MMDRENDER_CONFIG.
func KnownEnvVars() []string {
	known := []string{EnvConfigPath}
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT", "SERVER_SHUTDOWN_TIMEOUT", "SERVER_MAX_BODY_BYTES",
		"RENDER_TIMEOUT", "RENDER_MAX_TEXT_LENGTH", "RENDER_MAX_SCALE", "RENDER_WORKERS",
		"BROWSER_BIN", "BROWSER_NO_SANDBOX",
		"ASSETS_BASE_PATH", "ASSETS_PAYLOAD_URL", "ASSETS_CACHE_DIR", "ASSETS_OFFLINE",
		"LOGGING_LEVEL", "LOGGING_DEVELOPMENT",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS_PER_SECOND", "RATE_LIMIT_BURST", "RATE_LIMIT_PER_CLIENT",
		"CORS_ALLOW_ORIGINS",
		"CONTAINER", // doctor override, read directly
	} {
		known = append(known, "MMDRENDER_"+key)
	}
	sort.Strings(known)
	return known
}

// WarnUnknownEnvVars reports MMDRENDER_* variables nothing reads, which are
// almost always typos.
func WarnUnknownEnvVars(w io.Writer) {
	known := make(map[string]bool)
	for _, k := range KnownEnvVars() {
		known[k] = true
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "MMDRENDER_") {
			continue
		}
		name := strings.SplitN(env, "=", 2)[0]
		if !known[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}
