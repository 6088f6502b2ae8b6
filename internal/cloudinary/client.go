// Package cloudinary signs and performs uploads against the Cloudinary REST API.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.cloudinary.com/v1_1"

// ErrNotConfigured is returned when credentials are missing
var ErrNotConfigured = errors.New("cloudinary not configured")

// Config holds Cloudinary credentials
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// APIBase overrides the REST endpoint root
	APIBase string
	Timeout time.Duration
}

// Signature is what a browser needs for a signed direct upload
type Signature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
}

// UploadResult is the subset of the upload response the shop uses
type UploadResult struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Bytes        int64  `json:"bytes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Client talks to Cloudinary
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Enabled reports whether every credential is present
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.CloudName != "" && c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// Sign signs params plus the current timestamp
func (c *Client) Sign(params map[string]string) (*Signature, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	ts := c.now().Unix()
	toSign := make(map[string]string, len(params)+1)
	for k, v := range params {
		toSign[k] = v
	}
	toSign["timestamp"] = strconv.FormatInt(ts, 10)

	return &Signature{
		Signature: SignParams(toSign, c.cfg.APISecret),
		Timestamp: ts,
		APIKey:    c.cfg.APIKey,
		CloudName: c.cfg.CloudName,
	}, nil
}

// SignParams computes the request signature: parameters sorted by name,
// joined as k=v with '&', the secret appended, SHA-1 hex encoded. Empty
// values are left out.
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// Upload sends content as a signed image upload into folder
func (c *Client) Upload(ctx context.Context, filename string, content []byte, folder string) (*UploadResult, error) {
	sig, err := c.Sign(map[string]string{"folder": folder})
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"api_key":   sig.APIKey,
		"timestamp": strconv.FormatInt(sig.Timestamp, 10),
		"signature": sig.Signature,
	}
	if folder != "" {
		fields["folder"] = folder
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(c.cfg.APIBase, "/"), c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Cloudinary upload failed", zap.String("file", filename), zap.Error(err))
		return nil, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		c.logger.Error("Cloudinary rejected upload",
			zap.String("file", filename),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, fmt.Errorf("cloudinary upload rejected (%d): %s", resp.StatusCode, msg)
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.logger.Info("Uploaded to Cloudinary",
		zap.String("file", filename),
		zap.String("public_id", result.PublicID))

	return &result, nil
}
