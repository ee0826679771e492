package assets

import "fmt"

// maxAssetNameLength bounds names looked up in the asset directory.
const maxAssetNameLength = 64

// ValidateAssetName accepts names made of ASCII letters, digits, '-' and '_'.
// The loader appends the extension itself, so a dot or a separator in a
// name is always a mistake or an escape attempt.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if len(name) > maxAssetNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidAssetName, maxAssetNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
		}
	}
	return nil
}

func isNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	}
	return false
}
