package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func TestNormalizeJPEG(t *testing.T) {
	photo, err := NormalizePhoto(bytes.NewReader(createTestJPEG(100, 80)))
	if err != nil {
		t.Fatalf("NormalizePhoto JPEG: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", photo.MIME)
	}
	if photo.Width != 100 || photo.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", photo.Width, photo.Height)
	}
}

func TestNormalizePNGBecomesJPEG(t *testing.T) {
	photo, err := NormalizePhoto(bytes.NewReader(createTestPNG(100, 100)))
	if err != nil {
		t.Fatalf("NormalizePhoto PNG: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", photo.MIME)
	}
	if _, err := jpeg.Decode(bytes.NewReader(photo.Data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}

func TestNormalizeDownscalesKeepingAspect(t *testing.T) {
	photo, err := NormalizePhoto(bytes.NewReader(createTestJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("NormalizePhoto large image: %v", err)
	}
	if photo.Width != MaxDimension || photo.Height != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, photo.Width, photo.Height)
	}

	img, err := jpeg.Decode(bytes.NewReader(photo.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if img.Bounds().Dx() != photo.Width {
		t.Errorf("reported width %d, encoded %d", photo.Width, img.Bounds().Dx())
	}
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	tests := [][]byte{
		[]byte("not an image"),
		[]byte("GIF89a..."),
	}
	for _, data := range tests {
		if _, err := NormalizePhoto(bytes.NewReader(data)); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported for %q, got %v", data, err)
		}
	}
}

func TestNormalizeRejectsOversized(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, createTestJPEG(10, 10))
	if _, err := NormalizePhoto(bytes.NewReader(data)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
