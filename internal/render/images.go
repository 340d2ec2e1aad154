package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("empty image data")

const (
	formatJPEG = "JPG"
	formatPNG  = "PNG"

	// Long-edge cap in pixels before embedding
	maxImageEdge = 3000
)

// Image is a decoded illustration re-encoded for embedding
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// ImageSource resolves an image reference (data URI or URL) to an Image
// encoded at the given quality factor.
type ImageSource interface {
	Load(ctx context.Context, ref string, quality float64) (*Image, error)
}

// ImageLoaderConfig configures remote fetching and caching
type ImageLoaderConfig struct {
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	MaxBytes     int64
}

// ImageLoader loads images from data URIs and http(s) URLs. Remote payloads
// are cached by URL.
type ImageLoader struct {
	client   *http.Client
	cache    *cache.Cache
	maxBytes int64
	log      zerolog.Logger
}

// NewImageLoader creates an ImageLoader
func NewImageLoader(cfg ImageLoaderConfig, log zerolog.Logger) *ImageLoader {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 * 1024 * 1024
	}
	return &ImageLoader{
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		cache:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		maxBytes: cfg.MaxBytes,
		log:      log.With().Str("component", "image_loader").Logger(),
	}
}

// Load fetches, decodes and re-encodes an image. Quality below 1 produces
// JPEG, otherwise lossless PNG.
func (l *ImageLoader) Load(ctx context.Context, ref string, quality float64) (*Image, error) {
	raw, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return encodeImage(raw, quality)
}

func (l *ImageLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyImage
	}

	if strings.HasPrefix(ref, "data:") {
		du, err := dataurl.DecodeString(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data uri: %w", err)
		}
		if len(du.Data) == 0 {
			return nil, ErrEmptyImage
		}
		return du.Data, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported image scheme %q", u.Scheme)
	}

	if cached, ok := l.cache.Get(ref); ok {
		return cached.([]byte), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	l.cache.Set(ref, data, cache.DefaultExpiration)
	l.log.Debug().Str("url", ref).Int("bytes", len(data)).Msg("Image fetched")

	return data, nil
}

func encodeImage(raw []byte, quality float64) (*Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	if bounds.Dx() > maxImageEdge || bounds.Dy() > maxImageEdge {
		img = imaging.Fit(img, maxImageEdge, maxImageEdge, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	out := &Image{Width: bounds.Dx(), Height: bounds.Dy()}

	if quality > 0 && quality < 1 {
		// JPEG has no alpha; flatten onto white so transparent canvas
		// backgrounds do not turn black
		flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)
		q := int(math.Round(quality * 100))
		if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
		out.Format = formatJPEG
	} else {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		out.Format = formatPNG
	}

	out.Data = buf.Bytes()
	return out, nil
}
