package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collage-api/internal/assets"
	"collage-api/internal/manifest"
	"collage-api/web/handler"
)

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func newServer(t *testing.T) (string, *Client) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stickers", "data.json"),
		`{"categories":[{"category":"hearts","resource":[{"thumb":"/hearts/1.png","zip":"/hearts/1.zip"}]}]}`)
	writeFile(t, filepath.Join(root, "template2", "data.json"),
		`{"categories":[{"category":1,"resource":[{"thumb":"/t.jpg"}]}]}`)
	writeFile(t, filepath.Join(root, "stickers", "hearts", "1.zip"), "zip-bytes")

	h := handler.New(handler.Options{
		Catalog:   manifest.NewCatalog(manifest.NewLoader(manifest.DirStore{Root: root}), manifest.NewNormalizer("")),
		Assets:    assets.NewStore(root, 1<<20),
		MaxUpload: 1 << 20,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return root, c
}

func TestTemplatesAndValidate(t *testing.T) {
	_, c := newServer(t)
	ctx := context.Background()

	summaries, err := c.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].Valid)
	assert.False(t, summaries[1].Valid)

	report, err := c.Validate(ctx, manifest.Template2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Category 1, resource 0 missing thumb or zip", "Missing base URL"}, report.Errors)

	agg, err := c.ValidateAll(ctx)
	require.NoError(t, err)
	assert.False(t, agg.Valid)
	assert.Len(t, agg.Reports, 2)
}

func TestDataError(t *testing.T) {
	_, c := newServer(t)

	raw, err := c.Data(context.Background(), manifest.Stickers)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"hearts"`)

	_, err = c.Data(context.Background(), manifest.Template2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "invalid template data structure", apiErr.Message)
	assert.Empty(t, apiErr.Detail)
}

func TestDownload(t *testing.T) {
	_, c := newServer(t)
	var progress bytes.Buffer
	c.Progress = &progress

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), manifest.Stickers, "/hearts/1.zip", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)
	assert.Equal(t, "zip-bytes", buf.String())
	assert.Contains(t, progress.String(), "Downloading")

	_, err = c.Download(context.Background(), manifest.Stickers, "hearts/none.zip", io.Discard)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestDownloadChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(checksumHeader, "deadbeef")
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)
	_, err = c.Download(context.Background(), manifest.Stickers, "a.zip", io.Discard)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestUpload(t *testing.T) {
	root, c := newServer(t)
	src := filepath.Join(t.TempDir(), "frame.png")
	writeFile(t, src, "png-bytes")

	up, err := c.Upload(context.Background(), manifest.Template2, src)
	require.NoError(t, err)
	assert.Equal(t, "frame.png", up.Name)
	assert.EqualValues(t, 9, up.Size)

	stored, err := os.ReadFile(filepath.Join(root, "template2", filepath.FromSlash(up.Path)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))

	var buf bytes.Buffer
	_, err = c.Download(context.Background(), manifest.Template2, up.Path, &buf)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", buf.String())
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	assert.Error(t, err)
	_, err = New("://", nil)
	assert.Error(t, err)
}
