package manifest

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// ResourceType names one manifest family served by the API.
type ResourceType string

const (
	Stickers  ResourceType = "stickers"
	Template2 ResourceType = "template2"
)

// Rule is an advisory per-type check run after the structural pass. Its
// findings are reported as warnings.
type Rule func(doc *Document) []string

// TypeConfig describes how a resource type is validated and served.
type TypeConfig struct {
	// RequiresBase makes a missing "base" field a validation defect.
	RequiresBase bool
	// Absolutize rewrites relative thumb/zip values against the base URL
	// before the manifest is served.
	Absolutize bool
	Rules      []Rule
}

// Registry is resolved once; handlers never re-derive per-type behaviour.
var Registry = map[ResourceType]TypeConfig{
	Stickers: {
		Rules: []Rule{assetRootRule},
	},
	Template2: {
		RequiresBase: true,
		Absolutize:   true,
		Rules:        []Rule{assetRootRule},
	},
}

// Types returns the registered resource types in a stable order.
func Types() []ResourceType {
	types := lo.Keys(Registry)
	slices.Sort(types)
	return types
}

// Lookup returns the configuration for t.
func Lookup(t ResourceType) (TypeConfig, bool) {
	cfg, ok := Registry[t]
	return cfg, ok
}

// ParseResourceType validates user input against the registry.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(s)
	if _, ok := Registry[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

func (t ResourceType) String() string {
	return string(t)
}
