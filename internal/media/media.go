// Package media validates uploaded images and scales them down to the
// sizes the storefront displays.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const MaxUploadBytes = 5 << 20

var (
	ErrTooLarge        = errors.New("image_too_large")
	ErrUnsupportedType = errors.New("unsupported_image_type")
	ErrCorruptImage    = errors.New("corrupt_image")
)

// Fit is a bounding box; images larger than it are scaled down keeping
// their aspect ratio, smaller ones are left as is.
type Fit struct {
	Width  int
	Height int
}

var (
	ProductFit  = Fit{Width: 1600, Height: 1600}
	BoutiqueFit = Fit{Width: 1200, Height: 800}
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Result is a processed image ready for storage.
type Result struct {
	Content     []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Validate checks size, extension and sniffed content type.
func Validate(filename string, content []byte) (string, error) {
	if len(content) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedExt[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	if http.DetectContentType(content) != want {
		return "", ErrUnsupportedType
	}
	return want, nil
}

// Process decodes content, scales it into fit and re-encodes it. GIFs are
// kept as uploaded so animations survive; WebP is re-encoded as JPEG since
// no encoder ships with the image libraries in use.
func Process(filename string, content []byte, fit Fit) (Result, error) {
	contentType, err := Validate(filename, content)
	if err != nil {
		return Result{}, err
	}

	if contentType == "image/gif" {
		cfg, err := gif.DecodeConfig(bytes.NewReader(content))
		if err != nil {
			return Result{}, ErrCorruptImage
		}
		return Result{Content: content, ContentType: contentType, Ext: ".gif", Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return Result{}, ErrCorruptImage
	}

	scaled := scaleToFit(src, fit)
	bounds := scaled.Bounds()

	var buf bytes.Buffer
	switch contentType {
	case "image/png":
		if err := png.Encode(&buf, scaled); err != nil {
			return Result{}, fmt.Errorf("encode png: %w", err)
		}
		return Result{Content: buf.Bytes(), ContentType: "image/png", Ext: ".png", Width: bounds.Dx(), Height: bounds.Dy()}, nil
	default:
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
			return Result{}, fmt.Errorf("encode jpeg: %w", err)
		}
		return Result{Content: buf.Bytes(), ContentType: "image/jpeg", Ext: ".jpg", Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}
}

func scaleToFit(src image.Image, fit Fit) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if fit.Width <= 0 || fit.Height <= 0 || (w <= fit.Width && h <= fit.Height) {
		return src
	}

	ratio := min(float64(fit.Width)/float64(w), float64(fit.Height)/float64(h))
	nw := max(1, int(float64(w)*ratio+0.5))
	nh := max(1, int(float64(h)*ratio+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
