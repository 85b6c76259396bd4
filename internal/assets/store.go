package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"collage-api/internal/manifest"
)

// UploadDir is the per-type directory uploads are stored in.
const UploadDir = "uploads"

var (
	ErrOutsideRoot = errors.New("path escapes asset root")
	ErrNotFound    = errors.New("asset not found")
	ErrTooLarge    = errors.New("upload exceeds size limit")
	ErrBadName     = errors.New("invalid upload file name")
)

// Store serves and accepts files under <root>/<type>/.
type Store struct {
	root      string
	maxUpload int64
	newID     func() uuid.UUID
}

func NewStore(root string, maxUpload int64) *Store {
	return &Store{root: root, maxUpload: maxUpload, newID: uuid.New}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) typeDir(t manifest.ResourceType) (string, error) {
	if _, ok := manifest.Lookup(t); !ok {
		return "", fmt.Errorf("%w: %q", manifest.ErrUnknownType, string(t))
	}
	return filepath.Join(s.root, string(t)), nil
}

// Resolve maps a download request onto a regular file beneath the type
// directory. Leading slashes are treated as relative to that directory;
// any path that climbs above it is rejected, not clamped. Hidden entries such
// as the upload lock and in-flight temp files are never served.
func (s *Store) Resolve(t manifest.ResourceType, filePath string) (string, error) {
	dir, err := s.typeDir(t)
	if err != nil {
		return "", err
	}
	if manifest.EscapesRoot(filePath) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, filePath)
	}
	rel := path.Clean(strings.TrimLeft(filepath.ToSlash(filePath), "/"))
	if rel == "." {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
	}

	full, err := securejoin.SecureJoin(dir, filepath.FromSlash(rel))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", filePath, err)
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filePath)
	} else if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a file", ErrNotFound, filePath)
	}
	return full, nil
}
