// Package imagedoc handles raster images, both as standalone input files
// and as images embedded in other documents.
//
// A standalone image becomes a document with one section holding a single
// region element. Its text is filled in later by OCR or the AI stage.
package imagedoc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tsawler/intelliparse/model"
)

// Reader provides access to a standalone image file.
type Reader struct {
	name string
	img  *model.Image
}

// Open opens an image file for reading.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data)
}

// OpenBytes opens an image held in memory. The image header must decode.
func OpenBytes(name string, data []byte) (*Reader, error) {
	img := NewImage(name, data)
	if img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("decoding image header: unsupported or corrupt image")
	}
	return &Reader{name: name, img: img}, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	return nil
}

// Metadata returns document metadata.
func (r *Reader) Metadata() model.Metadata {
	return model.Metadata{
		PageCount: 1,
		Custom: map[string]string{
			"dimensions": fmt.Sprintf("%dx%d", r.img.Width, r.img.Height),
			"mime":       r.img.MIME,
		},
	}
}

// Document returns a single-section document holding the image as a region.
func (r *Reader) Document() (*model.Document, error) {
	doc := model.NewDocument(r.name, "")
	doc.Metadata = r.Metadata()
	doc.AddSection("").Add(model.NewRegion(r.img))
	return doc, nil
}

// NewImage builds a model.Image from encoded bytes, detecting the media
// type and reading the dimensions from the header. Undecodable data still
// yields an image with zero dimensions.
func NewImage(name string, data []byte) *model.Image {
	img := &model.Image{
		Name: name,
		Data: data,
		MIME: mimetype.Detect(data).String(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img
}

// Downscale re-encodes an image as JPEG so that neither side exceeds
// maxSide. Images already within bounds, or that cannot be decoded, are
// returned unchanged.
func Downscale(img *model.Image, maxSide int) (*model.Image, error) {
	if maxSide <= 0 || (img.Width <= maxSide && img.Height <= maxSide) {
		return img, nil
	}
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return img, fmt.Errorf("decoding image: %w", err)
	}
	b := src.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return img, fmt.Errorf("encoding image: %w", err)
	}
	out := *img
	out.Data = buf.Bytes()
	out.MIME = "image/jpeg"
	out.Width = w
	out.Height = h
	return &out, nil
}

func scaledSize(w, h, maxSide int) (int, int) {
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}
