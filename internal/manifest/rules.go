package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/samber/lo"
)

var (
	thumbPath = jp.MustParseString("$.categories[*].resource[*].thumb")
	zipPath   = jp.MustParseString("$.categories[*].resource[*].zip")
)

// AssetPaths returns every thumb and zip value in the document, thumbs first.
func AssetPaths(doc *Document) []string {
	var out []string
	for _, x := range []jp.Expr{thumbPath, zipPath} {
		for _, v := range x.Get(doc.root) {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// IsAbsoluteURL reports whether v is left untouched by normalization.
func IsAbsoluteURL(v string) bool {
	return strings.HasPrefix(v, "http")
}

// EscapesRoot reports whether a relative asset path climbs above the
// directory it is resolved against. Leading slashes are root-relative.
func EscapesRoot(p string) bool {
	clean := path.Clean(strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/"))
	return clean == ".." || strings.HasPrefix(clean, "../")
}

func assetRootRule(doc *Document) []string {
	escaping := lo.Uniq(lo.Filter(AssetPaths(doc), func(p string, _ int) bool {
		return !IsAbsoluteURL(p) && EscapesRoot(p)
	}))
	return lo.Map(escaping, func(p string, _ int) string {
		return fmt.Sprintf("Asset path %q escapes asset root", p)
	})
}
