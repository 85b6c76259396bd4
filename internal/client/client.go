package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"collage-api/internal/assets"
	"collage-api/internal/manifest"
	"collage-api/internal/ui"
)

// checksumHeader mirrors the header set by the download endpoint.
const checksumHeader = "X-Checksum-Sha256"

var ErrChecksumMismatch = errors.New("downloaded file checksum mismatch")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// AggregateReport is the response of the all-types validation endpoint.
type AggregateReport struct {
	Valid   bool              `json:"valid" yaml:"valid"`
	Reports []manifest.Report `json:"reports" yaml:"reports"`
}

type Client struct {
	base string
	http *http.Client
	// Progress receives transfer progress bars; nil disables them.
	Progress io.Writer
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http(s), got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.base+p, body)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Detail = body.Detail
	}
	return nil, apiErr
}

func (c *Client) getJSON(ctx context.Context, p string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, p, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) Templates(ctx context.Context) ([]manifest.Summary, error) {
	var out []manifest.Summary
	return out, c.getJSON(ctx, "/api/templates", &out)
}

func (c *Client) Validate(ctx context.Context, t manifest.ResourceType) (*manifest.Report, error) {
	var out manifest.Report
	if err := c.getJSON(ctx, "/api/"+url.PathEscape(string(t))+"/validate", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateAll(ctx context.Context) (*AggregateReport, error) {
	var out AggregateReport
	if err := c.getJSON(ctx, "/api/validate", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Data returns the manifest as served, without decoding it.
func (c *Client) Data(ctx context.Context, t manifest.ResourceType) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.getJSON(ctx, "/api/"+url.PathEscape(string(t)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Download streams an asset into w and verifies the checksum the server
// reports. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, t manifest.ResourceType, assetPath string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/download/"+url.PathEscape(string(t))+"/"+escapePath(assetPath), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if c.Progress != nil {
		bar := ui.NewBar("Downloading", resp.ContentLength, c.Progress)
		defer bar.Finish()
		body = ui.NewReader(body, bar)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hash), body)
	if err != nil {
		return n, err
	}
	sum := hex.EncodeToString(hash.Sum(nil))
	if want := resp.Header.Get(checksumHeader); want != "" && want != sum {
		return n, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, want)
	}
	return n, nil
}

// Upload sends the file at path to the upload endpoint.
func (c *Client) Upload(ctx context.Context, t manifest.ResourceType, path string) (*assets.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		var dst io.Writer = part
		if c.Progress != nil {
			bar := ui.NewBar("Uploading", info.Size(), c.Progress)
			defer bar.Finish()
			dst = ui.NewWriter(part, bar)
		}
		if _, err := io.Copy(dst, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload/"+url.PathEscape(string(t)), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var up assets.Upload
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return nil, err
	}
	return &up, nil
}
