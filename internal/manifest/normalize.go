package manifest

import "fmt"

// Normalizer rewrites relative asset references into absolute URLs.
type Normalizer struct {
	// BaseURL is used when a manifest carries no base of its own.
	BaseURL string
}

func NewNormalizer(baseURL string) *Normalizer {
	return &Normalizer{BaseURL: baseURL}
}

// Normalize returns a copy of doc in which every thumb and zip that does not
// start with "http" is prefixed with the base URL. The prefix is plain string
// concatenation: "https://x/" + "/a.jpg" is "https://x//a.jpg".
// Category identifiers, ordering and unknown keys are preserved.
func (n *Normalizer) Normalize(doc *Document) (*Document, error) {
	base := stringField(doc.root, "base")
	baseURL := base.value
	if !base.ok() {
		if n.BaseURL == "" {
			return nil, fmt.Errorf("%w: missing base", ErrStructure)
		}
		baseURL = n.BaseURL
	}
	if !arrayField(doc.root, "categories").ok() {
		return nil, fmt.Errorf("%w: missing categories", ErrStructure)
	}

	root := deepCopy(doc.root)
	categories := arrayField(root, "categories").value
	for i, cat := range categories {
		label := categoryLabel(cat, i)
		resources := arrayField(cat, "resource")
		if !resources.ok() {
			return nil, fmt.Errorf("%w: category %s has no resource list", ErrStructure, label)
		}
		for j, res := range resources.value {
			m, ok := res.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: category %s resource %d is not an object", ErrStructure, label, j)
			}
			for _, key := range []string{"thumb", "zip"} {
				f := stringField(m, key)
				if !f.ok() {
					return nil, fmt.Errorf("%w: category %s resource %d missing %s", ErrStructure, label, j, key)
				}
				if !IsAbsoluteURL(f.value) {
					m[key] = baseURL + f.value
				}
			}
		}
	}
	return &Document{root: root}, nil
}
