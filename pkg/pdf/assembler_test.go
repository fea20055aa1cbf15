package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 160, B: 40, A: 255})
		}
	}
	return img
}

func TestFit_WideImageFillsWidth(t *testing.T) {
	p := Fit(2000, 1000, PageWidthIn, PageHeightIn)

	assert.Equal(t, 0.0, p.X)
	assert.InDelta(t, PageWidthIn, p.Width, 1e-9)
	assert.InDelta(t, 5.5, p.Height, 1e-9)
	assert.InDelta(t, 1.35, p.Y, 1e-9)

	horizontal, vertical := p.Margins()
	assert.Equal(t, 0.0, horizontal)
	assert.Greater(t, vertical, 0.0)
}

func TestFit_TallImageFillsHeight(t *testing.T) {
	p := Fit(1000, 1000, PageWidthIn, PageHeightIn)

	assert.Equal(t, 0.0, p.Y)
	assert.InDelta(t, PageHeightIn, p.Height, 1e-9)
	assert.InDelta(t, 8.2, p.Width, 1e-9)
	assert.InDelta(t, 1.4, p.X, 1e-9)

	horizontal, vertical := p.Margins()
	assert.Greater(t, horizontal, 0.0)
	assert.Equal(t, 0.0, vertical)
}

func TestFit_MatchingAspectFillsPage(t *testing.T) {
	p := Fit(1100, 820, PageWidthIn, PageHeightIn)

	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	assert.InDelta(t, PageWidthIn, p.Width, 1e-9)
	assert.InDelta(t, PageHeightIn, p.Height, 1e-9)
}

func TestFit_StaysInsidePage(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3000, 10}, {10, 3000}, {1123, 837}, {837, 1123}}
	for _, s := range sizes {
		p := Fit(s[0], s[1], PageWidthIn, PageHeightIn)
		assert.LessOrEqual(t, p.X+p.Width, PageWidthIn+1e-9)
		assert.LessOrEqual(t, p.Y+p.Height, PageHeightIn+1e-9)
		assert.InDelta(t, float64(s[0])/float64(s[1]), p.Width/p.Height, 1e-9)
	}
}

func TestAssembler_BuildPNG(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)
	img := encodePNG(t, solidNRGBA(40, 20))

	doc, err := a.Build(context.Background(), img, "image/png")
	require.NoError(t, err)

	assert.Equal(t, MIMEType, doc.MIMEType)
	assert.Equal(t, "image/png", doc.SourceMIME)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
	assert.Contains(t, string(doc.Data), "/MediaBox [0 0 792.00 590.40]")
	assert.Equal(t, len(doc.Data), doc.Size())
	assert.Equal(t, 0.0, doc.Placement.X)
	assert.Greater(t, doc.Placement.Y, 0.0)
}

func TestAssembler_SniffsMissingHint(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidNRGBA(20, 40), nil))

	doc, err := a.Build(context.Background(), buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", doc.SourceMIME)
	assert.Greater(t, doc.Placement.X, 0.0)
	assert.Equal(t, 0.0, doc.Placement.Y)
}

func TestAssembler_ReencodesWidePNG(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)

	deep := image.NewNRGBA64(image.Rect(0, 0, 8, 8))
	for i := range deep.Pix {
		deep.Pix[i] = 0xff
	}
	img := encodePNG(t, deep)
	require.False(t, embeddablePNG(img))

	doc, err := a.Build(context.Background(), img, "image/png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
}

func TestAssembler_RejectsNonImage(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)

	_, err := a.Build(context.Background(), []byte("definitely not an image"), "image/png")
	assert.ErrorIs(t, err, ErrImageLoad)
	assert.Contains(t, err.Error(), "failed to load image data")

	_, err = a.Build(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestAssembler_HonorsCancelledContext(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Build(ctx, encodePNG(t, solidNRGBA(4, 4)), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssembler_BuildFromDataURL(t *testing.T) {
	a := NewAssembler(DefaultOptions(), nil)
	img := encodePNG(t, solidNRGBA(30, 30))
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)

	doc, err := a.BuildFromDataURL(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.SourceMIME)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))

	_, err = a.BuildFromDataURL(context.Background(), "data:application/pdf;base64,JVBERg==")
	assert.ErrorIs(t, err, ErrNotImageDataURL)
}

func TestParseImageDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMIME string
		wantData []byte
		wantErr  bool
	}{
		{"png", "data:image/png;base64,AQID", "image/png", []byte{1, 2, 3}, false},
		{"jpg alias", "data:image/jpg;base64,AQID", "image/jpeg", []byte{1, 2, 3}, false},
		{"with charset", "data:image/webp;charset=binary;base64,AQID", "image/webp", []byte{1, 2, 3}, false},
		{"not a data url", "AQID", "", nil, true},
		{"not base64", "data:image/png,AQID", "", nil, true},
		{"broken payload", "data:image/png;base64,%%%", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, data, err := ParseImageDataURL(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotImageDataURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, mimeType)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestImageDataURLText(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		want   string
		wantOK bool
	}{
		{"data url", []byte("data:image/png;base64,AQID"), "data:image/png;base64,AQID", true},
		{"surrounding whitespace", []byte("\n data:image/jpeg;base64,AQID \n"), "data:image/jpeg;base64,AQID", true},
		{"pdf bytes", []byte("%PDF-1.4"), "", false},
		{"non image data url", []byte("data:text/plain;base64,AQID"), "", false},
		{"missing base64 marker", []byte("data:image/png,AQID"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ImageDataURLText(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCheckImage(t *testing.T) {
	info, err := CheckImage(encodePNG(t, solidNRGBA(12, 5)))
	require.NoError(t, err)
	assert.Equal(t, ImageInfo{Format: "png", Width: 12, Height: 5}, info)

	_, err = CheckImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = CheckImage([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0})
	assert.ErrorIs(t, err, ErrImageLoad)
}
