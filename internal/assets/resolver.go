package assets

import "errors"

// AssetResolver combines custom and embedded loaders. When a custom directory
// is configured it is tried first, falling back to the embedded copy only when
// the asset is missing there.
type AssetResolver struct {
	custom   *FilesystemLoader // nil if no custom path configured
	embedded AssetLoader
}

// NewAssetResolver creates an AssetResolver. An empty customBasePath means
// embedded assets only. Returns an error if customBasePath is set but invalid.
func NewAssetResolver(customBasePath string) (*AssetResolver, error) {
	resolver := &AssetResolver{
		embedded: NewEmbeddedLoader(),
	}

	if customBasePath != "" {
		fsLoader, err := NewFilesystemLoader(customBasePath)
		if err != nil {
			return nil, err
		}
		resolver.custom = fsLoader
	}

	return resolver, nil
}

func (r *AssetResolver) LoadDocument(name string) (string, error) {
	return r.loadWithFallback(func(loader AssetLoader) (string, error) {
		return loader.LoadDocument(name)
	})
}

func (r *AssetResolver) LoadScript(name string) (string, error) {
	return r.loadWithFallback(func(loader AssetLoader) (string, error) {
		return loader.LoadScript(name)
	})
}

// Custom returns the filesystem loader, or nil without a custom directory.
func (r *AssetResolver) Custom() *FilesystemLoader {
	return r.custom
}

// HasCustomLoader returns true if a custom asset directory is configured.
func (r *AssetResolver) HasCustomLoader() bool {
	return r.custom != nil
}

func (r *AssetResolver) loadWithFallback(loadFn func(AssetLoader) (string, error)) (string, error) {
	if r.custom == nil {
		return loadFn(r.embedded)
	}

	content, err := loadFn(r.custom)
	if err == nil {
		return content, nil
	}

	// Validation and I/O errors are not masked by the embedded copy.
	if !errors.Is(err, ErrAssetNotFound) {
		return "", err
	}

	return loadFn(r.embedded)
}

// Compile-time interface check.
var _ AssetLoader = (*AssetResolver)(nil)
