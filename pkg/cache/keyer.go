package cache

import "strings"

// Key prefixes, one per kind of cached value.
const (
	KindLayout     = "layout"
	KindValidation = "validation"
)

// SchemaVersion is mixed into every key. Bump it when the serialized result
// changes shape so stale entries are never decoded.
const SchemaVersion = 1

// KeyOpts holds everything besides the input that changes a result.
type KeyOpts struct {
	// ConfigHash identifies the resolved layout settings.
	ConfigHash string `json:"config_hash"`
}

// Keyer derives cache keys.
type Keyer interface {
	// LayoutKey returns the key of a full layout result.
	LayoutKey(inputHash string, opts KeyOpts) string

	// ValidationKey returns the key of a validation-only result.
	ValidationKey(inputHash string, opts KeyOpts) string
}

// DefaultKeyer hashes the input hash, options, and schema version together.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(inputHash string, opts KeyOpts) string {
	return hashKey(KindLayout, SchemaVersion, inputHash, opts)
}

// ValidationKey implements Keyer.
func (DefaultKeyer) ValidationKey(inputHash string, opts KeyOpts) string {
	return hashKey(KindValidation, SchemaVersion, inputHash, opts)
}

// KindOf returns the kind of a key produced by a Keyer, for reporting.
// Scope prefixes are skipped.
func KindOf(key string) string {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return key
	}
	rest := key[:i]
	return rest[strings.LastIndexByte(rest, ':')+1:]
}
