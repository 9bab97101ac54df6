// [Jukebox] implementation over the appliance's HTTP API
//
// The appliance serves JSON endpoints from its soft-AP address, one request at a time.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

const defaultDeviceURL string = "http://192.168.4.1"

// DeviceService implements [Jukebox] against a device's base URL.
type DeviceService struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        *log.Logger
}

// Option configures a [DeviceService].
type Option func(*DeviceService)

// WithHTTPClient replaces [http.DefaultClient].
func WithHTTPClient(c *http.Client) Option {
	return func(d *DeviceService) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(d *DeviceService) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			d.limiter = nil
		}
	}
}

// WithTimeouts sets the JSON request timeout and the per-file transfer timeout. Zero disables either.
func WithTimeouts(request, transfer time.Duration) Option {
	return func(d *DeviceService) {
		d.timeout = request
		d.uploadTimeout = transfer
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(d *DeviceService) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDeviceService creates a client for the device at baseURL.
func NewDeviceService(baseURL string, opts ...Option) *DeviceService {
	if baseURL == "" {
		baseURL = defaultDeviceURL
	}

	d := &DeviceService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDeviceServiceFromConfig builds a client from the [device] config section.
func NewDeviceServiceFromConfig(cfg shared.DeviceConfig, logger *log.Logger) (*DeviceService, error) {
	request, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	transfer, err := cfg.TransferTimeout()
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("%w: requests_per_second must not be negative", shared.ErrInvalidConfig)
	}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: base_url %q", shared.ErrInvalidConfig, cfg.BaseURL)
		}
	}

	return NewDeviceService(cfg.BaseURL,
		WithTimeouts(request, transfer),
		WithRateLimit(cfg.RequestsPerSecond),
		WithLogger(logger),
	), nil
}

// Name returns the device's base URL.
func (d *DeviceService) Name() string {
	return d.baseURL
}

// BaseURL returns the device's base URL without a trailing slash.
func (d *DeviceService) BaseURL() string {
	return d.baseURL
}

// DownloadURL returns the URL that streams the named file.
func (d *DeviceService) DownloadURL(name string) string {
	return d.baseURL + "/download?" + url.Values{"file": {name}}.Encode()
}

// Songs fetches GET /songs.
func (d *DeviceService) Songs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := d.getJSON(ctx, "/songs", &songs); err != nil {
		return nil, err
	}
	if songs == nil {
		songs = []models.Song{}
	}
	return songs, nil
}

// Mappings fetches GET /mappings.
func (d *DeviceService) Mappings(ctx context.Context) ([]models.Mapping, error) {
	var mappings []models.Mapping
	if err := d.getJSON(ctx, "/mappings", &mappings); err != nil {
		return nil, err
	}
	if mappings == nil {
		mappings = []models.Mapping{}
	}
	return mappings, nil
}

// TagID fetches GET /tagid.
func (d *DeviceService) TagID(ctx context.Context) (string, error) {
	var body struct {
		TagID string `json:"tagid"`
	}
	if err := d.getJSON(ctx, "/tagid", &body); err != nil {
		return "", err
	}
	if tag := strings.TrimSpace(body.TagID); tag != "" {
		return tag, nil
	}
	return "", shared.ErrNoTag
}

// AddMapping posts `{tagid, song}` to /addmapping. Only HTTP 200 is success.
func (d *DeviceService) AddMapping(ctx context.Context, tagID, song string) error {
	_, err := d.postJSON(ctx, "/addmapping", map[string]string{"tagid": tagID, "song": song}, false)
	return err
}

// DeleteMapping posts `{tagid}` to /delmapping. Only HTTP 200 is success.
func (d *DeviceService) DeleteMapping(ctx context.Context, tagID string) error {
	_, err := d.postJSON(ctx, "/delmapping", map[string]string{"tagid": tagID}, false)
	return err
}

// RenameFile posts `{oldname, newname}` to /renamefile.
func (d *DeviceService) RenameFile(ctx context.Context, oldName, newName string) (bool, error) {
	if !shared.HasMP3Extension(newName) {
		return false, fmt.Errorf("%w: %s", shared.ErrInvalidFilename, newName)
	}
	body, err := d.postJSON(ctx, "/renamefile", map[string]string{"oldname": oldName, "newname": newName}, true)
	if err != nil {
		return false, err
	}
	return body.MappingsUpdated, nil
}

// DeleteFile posts `{filename}` to /deletefile.
func (d *DeviceService) DeleteFile(ctx context.Context, name string) error {
	_, err := d.postJSON(ctx, "/deletefile", map[string]string{"filename": name}, true)
	return err
}

// Download streams GET /download?file=name into w.
func (d *DeviceService) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	ctx, cancel := withTimeout(ctx, d.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.DownloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: download %s returned status %d", shared.ErrAPIRequest, name, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, transportError(ctx, fmt.Errorf("failed to read download: %w", err))
	}
	return n, nil
}

// Upload posts file as multipart field "data" to /upload.
//
// The request carries an exact Content-Length; progress sees file bytes only.
func (d *DeviceService) Upload(ctx context.Context, file models.FileBlob, progress ProgressFunc) error {
	if !shared.HasMP3Extension(file.Name) {
		return fmt.Errorf("%w: %s", shared.ErrInvalidFilename, file.Name)
	}

	content, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer content.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if _, err := mw.CreateFormFile("data", file.Name); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	head := bytes.Clone(buf.Bytes())
	buf.Reset()
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	tail := bytes.Clone(buf.Bytes())

	body := io.MultiReader(
		bytes.NewReader(head),
		&countingReader{r: content, total: file.Size, fn: progress},
		bytes.NewReader(tail),
	)

	ctx, cancel := withTimeout(ctx, d.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/upload", body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = int64(len(head)) + file.Size + int64(len(tail))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upload %s returned status %d", shared.ErrAPIRequest, file.Name, resp.StatusCode)
	}

	var result resultBody
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: failed to decode upload response: %v", shared.ErrAPIRequest, err)
	}
	if result.Result != "OK" {
		return &ResultError{Op: "upload", Status: resp.StatusCode, Result: result.Result, Message: result.Message}
	}
	return nil
}

func (d *DeviceService) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", shared.ErrAPIRequest, endpoint, err)
	}
	return nil
}

// postJSON sends payload and decodes a `{result, message}` body.
//
// With checkResult set, success requires result "OK"; otherwise HTTP 200 alone is success.
func (d *DeviceService) postJSON(ctx context.Context, endpoint string, payload any, checkResult bool) (resultBody, error) {
	var result resultBody
	op := strings.TrimPrefix(endpoint, "/")

	data, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.do(ctx, req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, transportError(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK {
		if decodeErr != nil || result.Result == "" {
			return result, &ResultError{Op: op, Status: resp.StatusCode}
		}
		return result, &ResultError{Op: op, Status: resp.StatusCode, Result: result.Result, Message: result.Message}
	}
	if !checkResult {
		return result, nil
	}
	if decodeErr != nil {
		return result, fmt.Errorf("%w: failed to decode %s response: %v", shared.ErrAPIRequest, op, decodeErr)
	}
	if result.Result != "OK" {
		return result, &ResultError{Op: op, Status: resp.StatusCode, Result: result.Result, Message: result.Message}
	}
	return result, nil
}

// do waits for the rate limiter, then sends req.
func (d *DeviceService) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, transportError(ctx, fmt.Errorf("rate limiter: %w", err))
		}
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, transportError(ctx, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, req.Method, req.URL.Path, err))
	}
	d.logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// transportError marks failures caused by an expired deadline with [shared.ErrTimeout].
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type countingReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.fn != nil {
			c.fn(c.sent, c.total)
		}
	}
	return n, err
}
