package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ManifestFile is the file name of a manifest inside its type directory.
const ManifestFile = "data.json"

// Store supplies raw manifest text by resource type.
type Store interface {
	ReadManifest(ctx context.Context, t ResourceType) ([]byte, error)
}

// DirStore reads <Root>/<type>/data.json.
type DirStore struct {
	Root string
}

func (s DirStore) Path(t ResourceType) string {
	return filepath.Join(s.Root, string(t), ManifestFile)
}

func (s DirStore) ReadManifest(ctx context.Context, t ResourceType) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.Path(t)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	} else if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", p, err)
	}
	return data, nil
}

// Loader builds a fresh Document on every call; nothing is cached.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

func (l *Loader) Load(ctx context.Context, t ResourceType) (*Document, error) {
	if _, ok := Lookup(t); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
	data, err := l.store.ReadManifest(ctx, t)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	return doc, nil
}
