package invoice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// Image is a resolved picture ready to be embedded in a document
type Image struct {
	Ref  string
	Data []byte
	// Type is the embed format: "jpg", "png" or "gif"
	Type string
}

// drawable maps sniffed MIME types to the formats the PDF writer embeds
var drawable = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// ResolverConfig configures an ImageResolver
type ResolverConfig struct {
	// PublicRoot is where site-relative references such as /uploads/x.jpg live
	PublicRoot  string
	Timeout     time.Duration
	MaxBytes    int64
	Concurrency int
	// Retry applies to remote references; the zero value means DefaultRetryStrategy
	Retry RetryStrategy
}

// ImageResolver turns image references into bytes. Remote references are
// fetched over HTTP; everything else is read from under PublicRoot.
type ImageResolver struct {
	client      *http.Client
	publicRoot  string
	maxBytes    int64
	concurrency int
	retry       RetryStrategy
	logger      Logger
}

// NewImageResolver creates a resolver. A nil client gets one with cfg.Timeout.
func NewImageResolver(cfg ResolverConfig, client *http.Client, logger Logger) *ImageResolver {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryStrategy()
	}
	return &ImageResolver{
		client:      client,
		publicRoot:  cfg.PublicRoot,
		maxBytes:    cfg.MaxBytes,
		concurrency: cfg.Concurrency,
		retry:       cfg.Retry,
		logger:      logger,
	}
}

// Resolve loads one reference. The error says why the image cannot be used;
// callers are expected to skip it and carry on.
func (r *ImageResolver) Resolve(ctx context.Context, ref string) (Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Image{}, fmt.Errorf("empty image reference")
	}

	var data []byte
	var err error
	if isRemote(ref) {
		data, err = r.fetch(ctx, ref)
	} else {
		data, err = r.readLocal(ref)
	}
	if err != nil {
		return Image{}, err
	}
	return classify(ref, data)
}

// ResolveAll resolves refs with bounded concurrency and returns the images
// that could be loaded, in the order their references were given.
func (r *ImageResolver) ResolveAll(ctx context.Context, refs []string) []Image {
	results := make([]*Image, len(refs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := r.Resolve(ctx, ref)
			if err != nil {
				r.logger.Info("Skipping invoice image", "ref", ref, "reason", err.Error())
				return nil
			}
			results[i] = &img
			return nil
		})
	}
	g.Wait()

	images := make([]Image, 0, len(refs))
	for _, img := range results {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images
}

func (r *ImageResolver) fetch(ctx context.Context, url string) ([]byte, error) {
	return r.retry.do(ctx, func() ([]byte, error) {
		return r.fetchOnce(ctx, url)
	})
}

func (r *ImageResolver) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bad image url: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", r.maxBytes)
	}
	return data, nil
}

// readLocal reads a site-relative reference from under the public root.
// A leading slash means "relative to the site", not the filesystem root.
func (r *ImageResolver) readLocal(ref string) ([]byte, error) {
	rel := filepath.FromSlash(strings.TrimLeft(ref, "/"))
	root, err := filepath.Abs(r.publicRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve public root: %w", err)
	}
	full := filepath.Join(root, rel)
	if within, err := filepath.Rel(root, full); err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("image path escapes public root: %s", ref)
	}
	return readFileLimited(full, r.maxBytes)
}

// LoadImageFile reads an image from a filesystem path, used for the shop logo
func LoadImageFile(path string, maxBytes int64) (Image, error) {
	data, err := readFileLimited(path, maxBytes)
	if err != nil {
		return Image{}, err
	}
	return classify(path, data)
}

func readFileLimited(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxBytes)
	}
	return os.ReadFile(path)
}

// classify sniffs the content so a mislabeled upload or an HTML error page
// served with status 200 is never handed to the PDF writer
func classify(ref string, data []byte) (Image, error) {
	mtype := mimetype.Detect(data)
	for mime, kind := range drawable {
		if mtype.Is(mime) {
			return Image{Ref: ref, Data: data, Type: kind}, nil
		}
	}
	return Image{}, fmt.Errorf("unsupported image type %s", mtype.String())
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
