// Package pdf wraps a single raster certificate image in a one-page
// landscape PDF document.
package pdf

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// PageWidthIn and PageHeightIn are the certificate page size in inches.
	PageWidthIn  = 11.0
	PageHeightIn = 8.2

	// MIMEType is the content type of every assembled document.
	MIMEType = "application/pdf"

	imageName = "certificate"
)

var (
	// ErrImageLoad is returned when the input cannot be decoded as an image.
	ErrImageLoad = errors.New("failed to load image data")
	// ErrEmptyImage is returned for a zero-length input.
	ErrEmptyImage = errors.New("image data is empty")
)

// Builder turns certificate images into PDF documents.
type Builder interface {
	Build(ctx context.Context, img []byte, mimeHint string) (*Document, error)
	BuildFromDataURL(ctx context.Context, dataURL string) (*Document, error)
}

// Document is an assembled single-page PDF held in memory.
type Document struct {
	Data       []byte    `json:"-"`
	MIMEType   string    `json:"mime_type"`
	SourceMIME string    `json:"source_mime"`
	Placement  Placement `json:"placement"`
}

// Size returns the document length in bytes.
func (d *Document) Size() int {
	return len(d.Data)
}

// Options configures the page and document metadata.
type Options struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	Unit       string  `json:"unit"`
	Title      string  `json:"title"`
	Author     string  `json:"author,omitempty"`
	Creator    string  `json:"creator,omitempty"`
}

// DefaultOptions returns the 11in x 8.2in landscape certificate page.
func DefaultOptions() Options {
	return Options{
		PageWidth:  PageWidthIn,
		PageHeight: PageHeightIn,
		Unit:       "in",
		Title:      "Certificate",
		Creator:    "certificate-place",
	}
}

// Assembler builds documents with a fixed page layout. It keeps no state
// between calls.
type Assembler struct {
	options Options
	logger  *zap.Logger
}

// NewAssembler creates an assembler using the given options.
func NewAssembler(options Options, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.PageWidth <= 0 || options.PageHeight <= 0 {
		defaults := DefaultOptions()
		options.PageWidth, options.PageHeight = defaults.PageWidth, defaults.PageHeight
	}
	if options.Unit == "" {
		options.Unit = "in"
	}
	return &Assembler{options: options, logger: logger.Named("pdf")}
}

// Build embeds img in a new page, scaled to fit and centered. An empty
// mimeHint means the type is sniffed from the bytes.
func (a *Assembler) Build(ctx context.Context, img []byte, mimeHint string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}

	mimeType := normalizeMIME(mimeHint)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMIME(mimetype.Detect(img).String())
	}
	a.logger.Debug("Converting image to PDF",
		zap.String("mime_type", mimeType),
		zap.Int("image_size", len(img)))

	prepared, err := prepareImage(img, mimeType)
	if err != nil {
		a.logger.Error("Error loading image", zap.String("mime_type", mimeType), zap.Error(err))
		return nil, err
	}

	placement := Fit(prepared.width, prepared.height, a.options.PageWidth, a.options.PageHeight)
	a.logger.Debug("Image placement calculated",
		zap.Int("image_width", prepared.width),
		zap.Int("image_height", prepared.height),
		zap.Float64("x", placement.X),
		zap.Float64("y", placement.Y),
		zap.Float64("width", placement.Width),
		zap.Float64("height", placement.Height))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := a.render(prepared, placement)
	if err != nil {
		a.logger.Error("Error converting image to PDF", zap.Error(err))
		return nil, err
	}

	a.logger.Info("PDF created successfully",
		zap.String("source_mime", mimeType),
		zap.Int("size", len(data)))

	return &Document{
		Data:       data,
		MIMEType:   MIMEType,
		SourceMIME: mimeType,
		Placement:  placement,
	}, nil
}

// BuildFromDataURL decodes a data:image/...;base64, URL and builds it.
func (a *Assembler) BuildFromDataURL(ctx context.Context, dataURL string) (*Document, error) {
	mimeType, img, err := ParseImageDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return a.Build(ctx, img, mimeType)
}

func (a *Assembler) newDocument() *gofpdf.Fpdf {
	// gofpdf takes the portrait size and swaps it for landscape.
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        a.options.Unit,
		Size: gofpdf.SizeType{
			Wd: a.options.PageHeight,
			Ht: a.options.PageWidth,
		},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	if a.options.Title != "" {
		doc.SetTitle(a.options.Title, true)
	}
	if a.options.Author != "" {
		doc.SetAuthor(a.options.Author, true)
	}
	if a.options.Creator != "" {
		doc.SetCreator(a.options.Creator, true)
	}
	return doc
}

func (a *Assembler) render(img *preparedImage, placement Placement) ([]byte, error) {
	doc := a.newDocument()
	doc.AddPage()

	opts := gofpdf.ImageOptions{ImageType: img.imageType}
	doc.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(img.data))
	if doc.Err() {
		return nil, errors.Wrap(doc.Error(), "embed image")
	}
	doc.ImageOptions(imageName, placement.X, placement.Y, placement.Width, placement.Height, false, opts, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}
	return buf.Bytes(), nil
}

type preparedImage struct {
	data      []byte
	imageType string
	width     int
	height    int
}

// ImageInfo is the header of a decodable raster image.
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CheckImage reads the image header and fails with ErrImageLoad when the
// bytes cannot be placed on a page.
func CheckImage(img []byte) (ImageInfo, error) {
	if len(img) == 0 {
		return ImageInfo{}, ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return ImageInfo{}, errors.Wrap(ErrImageLoad, err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, errors.Wrapf(ErrImageLoad, "invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// prepareImage reads the pixel size and converts the image to a form gofpdf
// can embed: JPEG and GIF as-is, 8-bit non-interlaced PNG as-is, everything
// else re-encoded to 8-bit PNG.
func prepareImage(img []byte, mimeType string) (*preparedImage, error) {
	info, err := CheckImage(img)
	if err != nil {
		return nil, err
	}

	prepared := &preparedImage{data: img, width: info.Width, height: info.Height}
	switch info.Format {
	case "jpeg":
		prepared.imageType = "JPG"
		return prepared, nil
	case "gif":
		prepared.imageType = "GIF"
		return prepared, nil
	case "png":
		if embeddablePNG(img) {
			prepared.imageType = "PNG"
			return prepared, nil
		}
	}

	reencoded, err := toPNG(img)
	if err != nil {
		return nil, err
	}
	prepared.data = reencoded
	prepared.imageType = "PNG"
	return prepared, nil
}

// embeddablePNG reads the IHDR chunk: gofpdf rejects 16-bit depth and
// interlaced images.
func embeddablePNG(img []byte) bool {
	const (
		depthOffset     = 24
		interlaceOffset = 28
	)
	if len(img) <= interlaceOffset {
		return false
	}
	return img[depthOffset] <= 8 && img[interlaceOffset] == 0
}

func toPNG(img []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, errors.Wrap(ErrImageLoad, err.Error())
	}

	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errors.Wrap(err, "re-encode image")
	}
	return buf.Bytes(), nil
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" {
		return "image/jpeg"
	}
	return m
}
