package raster

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
)

type mockUploader struct {
	ref  string
	err  error
	seen []byte
}

func (m *mockUploader) Upload(_ context.Context, _ string, data []byte) (string, error) {
	m.seen = data
	return m.ref, m.err
}

type mockConverter struct {
	urls   []string
	err    error
	ranges []PageRange
}

func (m *mockConverter) Convert(_ context.Context, _ string, pages PageRange) ([]string, error) {
	m.ranges = append(m.ranges, pages)
	if m.err != nil {
		return nil, m.err
	}
	n := pages.Last - pages.First + 1
	if len(m.urls) < n {
		n = len(m.urls)
	}
	return m.urls[:n], nil
}

type mockDownloader struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
}

func (m *mockDownloader) Download(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	return m.bodies[url], nil
}

var pngPage = append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{1}, 4096)...)

func TestRasterize_MissingCapability(t *testing.T) {
	var r *Rasterizer
	_, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 2)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindMissingCapability))

	r = New(nil, nil, nil, Config{}, nil)
	_, err = r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 2)
	assert.True(t, common.IsKind(err, common.KindMissingCapability))
	assert.False(t, r.Enabled())
}

func TestRasterize_PageRangeCappedAtThree(t *testing.T) {
	conv := &mockConverter{urls: []string{"u0", "u1", "u2", "u3"}}
	dl := &mockDownloader{bodies: map[string][]byte{"u0": pngPage, "u1": pngPage, "u2": pngPage, "u3": pngPage}}
	up := &mockUploader{ref: "ref-1"}
	r := New(up, conv, dl, Config{}, nil)

	imgs, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", []byte("%PDF-")), 12)
	require.NoError(t, err)
	require.Len(t, conv.ranges, 1)
	assert.Equal(t, PageRange{First: 0, Last: 2}, conv.ranges[0])
	assert.Equal(t, "0-2", conv.ranges[0].String())
	assert.Len(t, imgs, 3)
	assert.Equal(t, []byte("%PDF-"), up.seen)
	for i, img := range imgs {
		assert.Equal(t, i, img.PageIndex)
		assert.Equal(t, "image/png", img.MIMEType)
	}
}

func TestRasterize_SinglePageDocument(t *testing.T) {
	conv := &mockConverter{urls: []string{"u0"}}
	dl := &mockDownloader{bodies: map[string][]byte{"u0": pngPage}}
	r := New(&mockUploader{ref: "ref"}, conv, dl, Config{}, nil)

	imgs, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 1)
	require.NoError(t, err)
	assert.Equal(t, PageRange{First: 0, Last: 0}, conv.ranges[0])
	assert.Len(t, imgs, 1)
}

func TestRasterize_DownloadFailureTolerated(t *testing.T) {
	conv := &mockConverter{urls: []string{"u0", "u1", "u2"}}
	dl := &mockDownloader{
		bodies: map[string][]byte{"u0": pngPage, "u2": pngPage},
		errs:   map[string]error{"u1": errors.New("503")},
	}
	r := New(&mockUploader{ref: "ref"}, conv, dl, Config{}, nil)

	imgs, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 3)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, 0, imgs[0].PageIndex)
	assert.Equal(t, 2, imgs[1].PageIndex)
}

func TestRasterize_OversizedDropped(t *testing.T) {
	conv := &mockConverter{urls: []string{"u0", "u1"}}
	big := bytes.Repeat([]byte{0xFF}, 100)
	dl := &mockDownloader{bodies: map[string][]byte{"u0": big, "u1": pngPage[:60]}}
	r := New(&mockUploader{ref: "ref"}, conv, dl, Config{MaxBase64: 80}, nil)

	imgs, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 2)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, 1, imgs[0].PageIndex)
	assert.LessOrEqual(t, imgs[0].Base64Len(), 80)
}

func TestRasterize_AllDownloadsFail(t *testing.T) {
	conv := &mockConverter{urls: []string{"u0", "u1"}}
	dl := &mockDownloader{errs: map[string]error{"u0": errors.New("x"), "u1": errors.New("y")}}
	r := New(&mockUploader{ref: "ref"}, conv, dl, Config{}, nil)

	_, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 2)
	require.Error(t, err)
	assert.False(t, common.IsKind(err, common.KindMissingCapability))
}

func TestRasterize_UploadAndConvertErrors(t *testing.T) {
	dl := &mockDownloader{}
	r := New(&mockUploader{err: errors.New("quota")}, &mockConverter{}, dl, Config{}, nil)
	_, err := r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 1)
	assert.ErrorContains(t, err, "quota")

	r = New(&mockUploader{ref: "ref"}, &mockConverter{err: errors.New("bad pdf")}, dl, Config{}, nil)
	_, err = r.Rasterize(context.Background(), extract.NewDocument("cv.pdf", nil), 1)
	assert.ErrorContains(t, err, "bad pdf")
}
