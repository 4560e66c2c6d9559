package media

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	defaultBlurWidth   = 256
	defaultBlurSigma   = 20
	defaultBlurQuality = 60
)

// Blurrer renders the degraded variant served to viewers without access to
// the original.
type Blurrer struct {
	width   int
	sigma   float64
	quality int
}

func NewBlurrer(width int, sigma float64, quality int) *Blurrer {
	if width <= 0 {
		width = defaultBlurWidth
	}
	if sigma <= 0 {
		sigma = defaultBlurSigma
	}
	if quality <= 0 || quality > 100 {
		quality = defaultBlurQuality
	}
	return &Blurrer{width: width, sigma: sigma, quality: quality}
}

// Blur decodes src, shrinks it to at most the configured width, blurs it and
// encodes the result as JPEG. Smaller images are never enlarged.
func (b *Blurrer) Blur(src io.Reader) ([]byte, error) {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > b.width {
		img = imaging.Resize(img, b.width, 0, imaging.Lanczos)
	}
	blurred := imaging.Blur(img, b.sigma)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, blurred, imaging.JPEG, imaging.JPEGQuality(b.quality)); err != nil {
		return nil, fmt.Errorf("encode blurred image: %w", err)
	}
	return buf.Bytes(), nil
}

// BlurredPath derives the object key of the blurred variant of originalPath.
func BlurredPath(originalPath string) string {
	ext := path.Ext(originalPath)
	if ext == "" {
		return originalPath + "_blur.jpg"
	}
	return strings.TrimSuffix(originalPath, ext) + "_blur" + ext
}
