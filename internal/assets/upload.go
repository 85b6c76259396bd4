package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"collage-api/internal/manifest"
)

const lockFile = ".lock"

// Upload describes a stored file. Path is relative to the type directory,
// so it can be passed straight back to the download endpoint.
type Upload struct {
	ID       uuid.UUID             `json:"id" yaml:"id"`
	Type     manifest.ResourceType `json:"type" yaml:"type"`
	Name     string                `json:"name" yaml:"name"`
	Path     string                `json:"path" yaml:"path"`
	Size     int64                 `json:"size" yaml:"size"`
	Checksum string                `json:"sha256" yaml:"sha256"`
}

func sanitizeName(name string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(name, `\`, "/")))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return base, nil
}

// Save streams r into <root>/<type>/uploads. The original file name is kept
// when free; otherwise it is prefixed with part of the upload id.
func (s *Store) Save(ctx context.Context, t manifest.ResourceType, filename string, r io.Reader) (*Upload, error) {
	dir, err := s.typeDir(t)
	if err != nil {
		return nil, err
	}
	name, err := sanitizeName(filename)
	if err != nil {
		return nil, err
	}
	uploadDir := filepath.Join(dir, UploadDir)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(uploadDir, ".upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	src := r
	if s.maxUpload > 0 {
		src = io.LimitReader(r, s.maxUpload+1)
	}
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), src)
	if err != nil {
		return nil, fmt.Errorf("buffer upload: %w", err)
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxUpload)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	up := &Upload{
		ID:       s.newID(),
		Type:     t,
		Size:     size,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}
	err = withDirLock(ctx, filepath.Join(uploadDir, lockFile), func() error {
		stored, err := freeName(uploadDir, name, up.ID)
		if err != nil {
			return err
		}
		if err := os.Rename(tmp.Name(), filepath.Join(uploadDir, stored)); err != nil {
			return err
		}
		up.Name = stored
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	up.Path = path.Join(UploadDir, up.Name)

	slog.Info("stored upload", "type", t, "name", up.Name, "size", up.Size, "sha256", up.Checksum)
	return up, nil
}

// freeName picks the first unused name among the original, the name prefixed
// with the short upload id, and the name prefixed with the full id.
func freeName(dir, name string, id uuid.UUID) (string, error) {
	for _, candidate := range []string{name, id.String()[:8] + "-" + name, id.String() + "-" + name} {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", fs.ErrExist, name)
}
