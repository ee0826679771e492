package assets

import (
	"embed"
	"fmt"
)

//go:embed sandbox/*.html
var documents embed.FS

//go:embed scripts/*.js
var scripts embed.FS

// EmbeddedLoader loads assets compiled into the binary.
type EmbeddedLoader struct{}

// NewEmbeddedLoader creates an EmbeddedLoader.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{}
}

func (e *EmbeddedLoader) LoadDocument(name string) (string, error) {
	return readEmbedded(documents, "sandbox/", name, ".html")
}

func (e *EmbeddedLoader) LoadScript(name string) (string, error) {
	return readEmbedded(scripts, "scripts/", name, ".js")
}

func readEmbedded(fsys embed.FS, dir, name, ext string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	content, err := fsys.ReadFile(dir + name + ext)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrAssetNotFound, name+ext)
	}
	return string(content), nil
}

// Compile-time interface check.
var _ AssetLoader = (*EmbeddedLoader)(nil)
