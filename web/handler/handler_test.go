package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collage-api/internal/assets"
	"collage-api/internal/manifest"
)

const (
	stickersJSON  = `{"categories":[{"category":"hearts","resource":[{"thumb":"/hearts/1.png","zip":"/hearts/1.zip"}]}]}`
	template2JSON = `{"base":"https://x/","categories":[{"category":1,"resource":[{"thumb":"/t.jpg","zip":"http://y/z.zip"}]}]}`
)

type fixture struct {
	root   string
	router http.Handler
}

func newFixture(t *testing.T, debug bool, manifests map[manifest.ResourceType]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for typ, body := range manifests {
		writeFile(t, filepath.Join(root, string(typ), manifest.ManifestFile), body)
	}
	h := New(Options{
		Catalog:   manifest.NewCatalog(manifest.NewLoader(manifest.DirStore{Root: root}), manifest.NewNormalizer("")),
		Assets:    assets.NewStore(root, 1024),
		MaxUpload: 1024,
		Debug:     debug,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{root: root, router: h.Router()}
}

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIndex(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[endpointInfo](t, rec)
	assert.Equal(t, "HM Photo Collage API is running", body.Message)
	assert.Equal(t, "GET /api/templates", body.Endpoints["templates"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.get(t, "/healthz")
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestData(t *testing.T) {
	f := newFixture(t, false, map[manifest.ResourceType]string{
		manifest.Stickers:  stickersJSON,
		manifest.Template2: template2JSON,
	})

	rec := f.get(t, "/api/template2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"base":"https://x/","categories":[{"category":1,"resource":[{"thumb":"https://x//t.jpg","zip":"http://y/z.zip"}]}]}`, rec.Body.String())

	rec = f.get(t, "/api/stickers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, stickersJSON, rec.Body.String())
}

func TestDataErrors(t *testing.T) {
	f := newFixture(t, false, map[manifest.ResourceType]string{
		manifest.Stickers:  `{"categories": [`,
		manifest.Template2: `{"categories": []}`,
	})

	rec := f.get(t, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown resource type", decode[errorBody](t, rec).Error)

	rec = f.get(t, "/api/stickers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "template data is corrupt", body.Error)
	assert.Empty(t, body.Detail)

	rec = f.get(t, "/api/template2")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "invalid template data structure", decode[errorBody](t, rec).Error)
}

func TestDataNotFound(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.get(t, "/api/template2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "template data not found", decode[errorBody](t, rec).Error)
}

func TestDebugDetail(t *testing.T) {
	f := newFixture(t, true, map[manifest.ResourceType]string{manifest.Template2: `{"categories": []}`})
	rec := f.get(t, "/api/template2")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Detail, "missing base")
}

func TestValidate(t *testing.T) {
	f := newFixture(t, false, map[manifest.ResourceType]string{
		manifest.Stickers:  `{"categories":"not-an-array"}`,
		manifest.Template2: `{"categories":[{"category":1,"resource":[{"thumb":"t"}]}]}`,
	})

	rec := f.get(t, "/api/stickers/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"stickers","valid":false,"errors":["Missing or invalid categories array"],"categories":0,"resources":0}`, rec.Body.String())

	rec = f.get(t, "/api/template2/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[manifest.Report](t, rec)
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"Category 1, resource 0 missing thumb or zip", "Missing base URL"}, report.Errors)
	assert.Equal(t, 1, report.Resources)
}

func TestValidateAll(t *testing.T) {
	f := newFixture(t, false, map[manifest.ResourceType]string{
		manifest.Stickers:  stickersJSON,
		manifest.Template2: template2JSON,
	})

	rec := f.get(t, "/api/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decode[aggregateReport](t, rec)
	assert.True(t, agg.Valid)
	require.Len(t, agg.Reports, 2)
	assert.Equal(t, manifest.Stickers, agg.Reports[0].Type)
	assert.Equal(t, manifest.Template2, agg.Reports[1].Type)
	assert.Equal(t, []string{}, agg.Reports[1].Errors)
}

func TestTemplates(t *testing.T) {
	f := newFixture(t, false, map[manifest.ResourceType]string{manifest.Stickers: stickersJSON})

	rec := f.get(t, "/api/templates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []manifest.Summary{
		{Type: manifest.Stickers, Available: true, Valid: true, Categories: 1, Resources: 1},
		{Type: manifest.Template2},
	}, decode[[]manifest.Summary](t, rec))
}

func TestDownload(t *testing.T) {
	f := newFixture(t, false, nil)
	writeFile(t, filepath.Join(f.root, "template2", "1", "t.zip"), "zipdata")
	writeFile(t, filepath.Join(f.root, "secret.txt"), "secret")

	rec := f.get(t, "/api/download/template2/1/t.zip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zipdata", rec.Body.String())
	assert.Equal(t, `attachment; filename=t.zip`, rec.Header().Get("Content-Disposition"))
	sum, err := assets.Checksum(bytes.NewReader([]byte("zipdata")))
	require.NoError(t, err)
	assert.Equal(t, sum, rec.Header().Get(ChecksumHeader))

	rec = f.get(t, "/api/download/template2/../secret.txt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid file path", decode[errorBody](t, rec).Error)

	rec = f.get(t, "/api/download/template2/1/missing.zip")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.get(t, "/api/download/other/1/t.zip")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	f := newFixture(t, false, nil)

	body, ct := multipartBody(t, "file", "frame.png", "pngdata")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/stickers", body)
	req.Header.Set("Content-Type", ct)
	rec := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	up := decode[assets.Upload](t, rec)
	assert.Equal(t, "frame.png", up.Name)
	assert.Equal(t, "uploads/frame.png", up.Path)
	assert.EqualValues(t, 7, up.Size)

	rec = f.get(t, "/api/download/stickers/"+up.Path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pngdata", rec.Body.String())
	assert.Equal(t, up.Checksum, rec.Header().Get(ChecksumHeader))
}

func TestUploadErrors(t *testing.T) {
	f := newFixture(t, false, nil)

	body, ct := multipartBody(t, "other", "frame.png", "pngdata")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/stickers", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, f.do(t, req).Code)

	body, ct = multipartBody(t, "file", "big.bin", string(make([]byte, 2048)))
	req = httptest.NewRequest(http.MethodPost, "/api/upload/stickers", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, f.do(t, req).Code)

	body, ct = multipartBody(t, "file", "a.png", "x")
	req = httptest.NewRequest(http.MethodPost, "/api/upload/nope", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusNotFound, f.do(t, req).Code)

	rec := f.get(t, "/api/upload/stickers")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.do(t, httptest.NewRequest(http.MethodOptions, "/api/upload/stickers", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.get(t, "/nothing/here")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[errorBody](t, rec).Error)
}
