package render_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixel-tales-export-api/internal/render"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func newLoader() *render.ImageLoader {
	return render.NewImageLoader(render.ImageLoaderConfig{
		FetchTimeout: 5 * time.Second,
		CacheTTL:     time.Minute,
	}, zerolog.Nop())
}

func TestImageLoader_DataURI(t *testing.T) {
	loader := newLoader()
	ref := dataURI(pngBytes(t, 8, 4))

	img, err := loader.Load(context.Background(), ref, 0.85)
	require.NoError(t, err)
	assert.Equal(t, "JPG", img.Format)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 4, img.Height)
	assert.NotEmpty(t, img.Data)

	lossless, err := loader.Load(context.Background(), ref, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "PNG", lossless.Format)
}

func TestImageLoader_Failures(t *testing.T) {
	loader := newLoader()

	tests := []struct {
		name string
		ref  string
	}{
		{"empty", ""},
		{"empty data uri", "data:image/png;base64,"},
		{"not an image", dataURI([]byte("definitely not pixels"))},
		{"unsupported scheme", "ftp://example.com/cover.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := loader.Load(context.Background(), tt.ref, 0.9)
			assert.Error(t, err)
			assert.Nil(t, img)
		})
	}

	_, err := loader.Load(context.Background(), "", 0.9)
	assert.ErrorIs(t, err, render.ErrEmptyImage)
}

func TestImageLoader_RemoteCached(t *testing.T) {
	payload := pngBytes(t, 6, 6)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	loader := newLoader()
	for i := 0; i < 3; i++ {
		img, err := loader.Load(context.Background(), srv.URL+"/cover.png", 0.92)
		require.NoError(t, err)
		assert.Equal(t, 6, img.Width)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "remote bytes should be cached")

	_, err := loader.Load(context.Background(), srv.URL+"/missing.png", 0.92)
	assert.Error(t, err)
}

func TestImageLoader_HonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newLoader().Load(ctx, srv.URL+"/slow.png", 0.9)
	assert.Error(t, err)
}
