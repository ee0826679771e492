package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/alnah/go-mmdrender/internal/fileutil"
)

// MermaidVersion is the library release fetched by default.
const MermaidVersion = "11.4.1"

// DefaultPayloadURL is where the library is downloaded from when it is not
// available locally.
const DefaultPayloadURL = "https://cdn.jsdelivr.net/npm/mermaid@" + MermaidVersion + "/dist/mermaid.min.js"

// DefaultDownloadTimeout bounds the whole download including retries.
const DefaultDownloadTimeout = 2 * time.Minute

// cacheAppDir is the subdirectory of the user cache directory.
const cacheAppDir = "go-mmdrender"

// Where the library came from.
const (
	SourceAssetPath = "asset-path"
	SourceCache     = "cache"
	SourceDownload  = "download"
)

// Payload is everything injected into a tab: the sandbox document and the
// script defining window.render.
type Payload struct {
	Sandbox string
	Script  string // Mermaid library followed by the glue script
	Source  string // SourceAssetPath, SourceCache or SourceDownload
}

// PayloadOptions controls where LoadPayload looks for assets.
type PayloadOptions struct {
	BasePath string // custom asset directory, empty for embedded only
	CacheDir string // empty for DefaultCacheDir(); "-" disables caching
	URL      string // empty for DefaultPayloadURL
	Offline  bool   // never download
	Timeout  time.Duration
	Client   *retryablehttp.Client // nil for a default client
	Logger   *zap.Logger
}

// DefaultCacheDir returns the per-user cache directory, or "" when the
// platform has none.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, cacheAppDir)
}

// CacheFileName returns the cache entry name for url. The pinned default
// is named after its version; other URLs after a short digest.
func CacheFileName(url string) string {
	if url == "" || url == DefaultPayloadURL {
		return "mermaid-" + MermaidVersion + ".min.js"
	}
	sum := sha256.Sum256([]byte(url))
	return "mermaid-" + hex.EncodeToString(sum[:6]) + ".min.js"
}

// LoadPayload assembles the payload. The sandbox and glue come from the
// custom directory or the embedded copies; the library from the custom
// directory, the cache, or a download, in that order.
func LoadPayload(opts PayloadOptions) (*Payload, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.URL == "" {
		opts.URL = DefaultPayloadURL
	}
	if opts.CacheDir == "" {
		opts.CacheDir = DefaultCacheDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDownloadTimeout
	}

	resolver, err := NewAssetResolver(opts.BasePath)
	if err != nil {
		return nil, err
	}

	sandbox, err := resolver.LoadDocument(SandboxName)
	if err != nil {
		return nil, fmt.Errorf("loading sandbox: %w", err)
	}
	glue, err := resolver.LoadScript(GlueName)
	if err != nil {
		return nil, fmt.Errorf("loading glue script: %w", err)
	}

	library, source, err := loadLibrary(resolver, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("payload loaded",
		zap.String("source", source),
		zap.Int("library_bytes", len(library)))

	return &Payload{
		Sandbox: sandbox,
		Script:  library + "\n;\n" + glue,
		Source:  source,
	}, nil
}

func loadLibrary(resolver *AssetResolver, opts PayloadOptions) (library, source string, err error) {
	if custom := resolver.Custom(); custom != nil {
		library, err := custom.LoadLibrary()
		switch {
		case err == nil:
			return library, SourceAssetPath, nil
		case !errors.Is(err, ErrAssetNotFound):
			return "", "", err
		}
	}

	cachePath := ""
	if opts.CacheDir != "" && opts.CacheDir != "-" {
		cachePath = filepath.Join(opts.CacheDir, CacheFileName(opts.URL))
		if data, err := os.ReadFile(cachePath); err == nil && len(strings.TrimSpace(string(data))) > 0 { // #nosec G304 -- cache path built from config
			return string(data), SourceCache, nil
		}
	}

	if opts.Offline {
		return "", "", fmt.Errorf("%w: not in asset path or cache, and offline mode is set", ErrPayloadNotFound)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	opts.Logger.Info("downloading mermaid library", zap.String("url", opts.URL))
	data, err := fetchLibrary(ctx, opts.Client, opts.URL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrPayloadNotFound, err)
	}

	if cachePath != "" {
		if err := fileutil.WriteFileAtomic(cachePath, data, 0o644); err != nil {
			opts.Logger.Warn("caching mermaid library", zap.String("path", cachePath), zap.Error(err))
		}
	}
	return string(data), SourceDownload, nil
}
