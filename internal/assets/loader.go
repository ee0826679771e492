package assets

// AssetLoader loads the text assets injected into the browser.
type AssetLoader interface {
	// LoadDocument loads an HTML document by name (without .html extension).
	// Returns ErrAssetNotFound if the document doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadDocument(name string) (string, error)

	// LoadScript loads a JavaScript file by name (without .js extension).
	// Returns ErrAssetNotFound if the script doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadScript(name string) (string, error)
}

// Names of the built-in assets.
const (
	SandboxName = "index"
	GlueName    = "render"
)

// LibraryFileName is the file looked up in a custom asset directory.
const LibraryFileName = "mermaid.min.js"
