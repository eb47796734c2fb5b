package imagedoc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/tsawler/intelliparse/model"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewImage(t *testing.T) {
	data := encodePNG(t, 40, 20)
	img := NewImage("x.png", data)
	if img.Width != 40 || img.Height != 20 {
		t.Errorf("dimensions = %dx%d, want 40x20", img.Width, img.Height)
	}
	if img.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", img.MIME)
	}

	bad := NewImage("x.bin", []byte("nope"))
	if bad.Width != 0 || bad.Height != 0 {
		t.Error("undecodable image should have zero dimensions")
	}
}

func TestOpenBytes_Document(t *testing.T) {
	r, err := OpenBytes("scan.png", encodePNG(t, 10, 10))
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	defer r.Close()

	doc, err := r.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if len(doc.Sections) != 1 || len(doc.Sections[0].Elements) != 1 {
		t.Fatalf("unexpected structure: %d sections", len(doc.Sections))
	}
	el := doc.Sections[0].Elements[0]
	if el.Type != model.ElementTypeRegion || el.Image == nil {
		t.Errorf("element = %v, want region with image", el.Type)
	}
	if len(doc.Sections[0].Images) != 1 {
		t.Errorf("section images = %d, want 1", len(doc.Sections[0].Images))
	}
}

func TestOpenBytes_Corrupt(t *testing.T) {
	if _, err := OpenBytes("bad.png", []byte("\x89PNG\r\n\x1a\ngarbage")); err == nil {
		t.Error("expected error for corrupt image")
	}
}

func TestDownscale(t *testing.T) {
	img := NewImage("big.png", encodePNG(t, 400, 100))

	out, err := Downscale(img, 100)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if out.Width != 100 || out.Height != 25 {
		t.Errorf("scaled to %dx%d, want 100x25", out.Width, out.Height)
	}
	if out.MIME != "image/jpeg" {
		t.Errorf("MIME = %q", out.MIME)
	}
	if img.Width != 400 {
		t.Error("Downscale must not modify its input")
	}

	same, err := Downscale(img, 1000)
	if err != nil || same != img {
		t.Error("image within bounds should be returned unchanged")
	}
}
