package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/config"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService() *Service {
	return NewService(&config.Config{})
}

func TestResolveDataURL(t *testing.T) {
	s := newTestService()

	raw := pngBytes(t, 8, 8)
	content := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	media, err := s.Resolve(context.Background(), "image", content, "", "pic.png", "caption")
	require.NoError(t, err)

	assert.Equal(t, raw, media.Data)
	assert.Equal(t, "image/png", media.MimeType)
	assert.Equal(t, "caption", media.Caption)
	assert.NotEmpty(t, media.Thumbnail)
}

func TestResolveRawBase64(t *testing.T) {
	s := newTestService()

	raw := []byte("%PDF-1.4 fake document")
	content := base64.StdEncoding.EncodeToString(raw)

	media, err := s.Resolve(context.Background(), "document", content, "application/pdf", "doc.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, raw, media.Data)
	assert.Equal(t, "application/pdf", media.MimeType)
	assert.Empty(t, media.Thumbnail)
}

func TestResolveRemoteURL(t *testing.T) {
	raw := pngBytes(t, 8, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(raw)
	}))
	defer server.Close()

	s := newTestService()

	media, err := s.Resolve(context.Background(), "image", server.URL+"/pic.png", "", "", "")
	require.NoError(t, err)

	assert.Equal(t, raw, media.Data)
	assert.Equal(t, "image/png", media.MimeType)
}

func TestResolveRemoteURLFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestService()

	_, err := s.Resolve(context.Background(), "image", server.URL+"/missing.png", "", "", "")
	assert.Error(t, err)
}

func TestResolveRejectsGarbage(t *testing.T) {
	s := newTestService()

	_, err := s.Resolve(context.Background(), "image", "not base64 at all!!!", "", "", "")
	assert.Error(t, err)
}

func TestThumbnailDownscales(t *testing.T) {
	s := newTestService()

	thumb, err := s.Thumbnail(pngBytes(t, 512, 256))
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), thumbnailEdge)
	assert.LessOrEqual(t, img.Bounds().Dy(), thumbnailEdge)
}

func TestArchiveDisabledIsNoop(t *testing.T) {
	s := newTestService()

	key, err := s.Archive(context.Background(), "inst-1", "msg-1", []byte{1, 2, 3}, "image/jpeg")
	require.NoError(t, err)
	assert.Empty(t, key)
}
