// Package assets provides the browser-side payload used to render diagrams:
// the sandbox page, the render glue script and the Mermaid library.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - sandbox page and glue script compiled in
//	    ├── FilesystemLoader  - overrides from a custom directory on disk
//	    └── AssetResolver     - custom first, embedded fallback
//
// The Mermaid library is never embedded. LoadPayload looks for it in the
// custom directory, then in the download cache, then fetches it over HTTP
// unless offline mode is set.
//
// # Directory Structure
//
//	{basePath}/
//	├── mermaid.min.js           # Mermaid library (optional)
//	├── sandbox/
//	│   └── index.html           # Sandbox page (optional override)
//	└── scripts/
//	    └── render.js            # Glue defining window.render (optional override)
//
// # Security
//
// Asset names are validated to prevent path traversal. FilesystemLoader
// resolves symlinks and verifies paths stay within basePath.
package assets
