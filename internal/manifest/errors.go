package manifest

import "errors"

var (
	// ErrNotFound is returned when the backing manifest for a type is absent.
	ErrNotFound = errors.New("manifest not found")
	// ErrParse is returned when the manifest text is not well-formed JSON.
	ErrParse = errors.New("manifest is not valid JSON")
	// ErrStructure is returned when well-formed JSON lacks keys a step needs.
	ErrStructure = errors.New("manifest structure error")
	// ErrUnknownType is returned for resource types outside the registry.
	ErrUnknownType = errors.New("unknown resource type")
)
