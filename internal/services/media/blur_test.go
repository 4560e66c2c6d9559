package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func encodeTestImage(t *testing.T, width, height int) *bytes.Reader {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestBlurShrinksWideImages(t *testing.T) {
	out, err := NewBlurrer(256, 20, 60).Blur(encodeTestImage(t, 1024, 512))
	if err != nil {
		t.Fatalf("blur: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode blurred: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 128 {
		t.Fatalf("unexpected blurred size: %v", img.Bounds())
	}
}

func TestBlurKeepsSmallImagesSize(t *testing.T) {
	out, err := NewBlurrer(0, 0, 0).Blur(encodeTestImage(t, 100, 80))
	if err != nil {
		t.Fatalf("blur: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode blurred: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Fatalf("small image must not be enlarged: %v", img.Bounds())
	}
}

func TestBlurRejectsGarbage(t *testing.T) {
	if _, err := NewBlurrer(0, 0, 0).Blur(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBlurredPath(t *testing.T) {
	tests := map[string]string{
		"user/photo.jpg":     "user/photo_blur.jpg",
		"user/photo.v2.png":  "user/photo.v2_blur.png",
		"user/photo":         "user/photo_blur.jpg",
		"user.dir/photo":     "user.dir/photo_blur.jpg",
		"user/nested/a.jpeg": "user/nested/a_blur.jpeg",
	}
	for in, want := range tests {
		if got := BlurredPath(in); got != want {
			t.Fatalf("unexpected blurred path for %q: got %q want %q", in, got, want)
		}
	}
}
