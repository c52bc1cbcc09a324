// Package image re-encodes user photos into bounded JPEG payloads.
package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Options controls photo normalization.
type Options struct {
	MaxWidth   int
	MaxHeight  int
	Quality    int
	Background color.Color // fill for transparent sources, JPEG has no alpha
}

// DefaultOptions matches the submission form defaults.
func DefaultOptions() Options {
	return Options{
		MaxWidth:   1280,
		MaxHeight:  1280,
		Quality:    85,
		Background: color.White,
	}
}

// Payload is a normalized photo: re-encoded bytes plus the declared MIME
// type. It exists only for the duration of one submission attempt.
type Payload struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Orientation extracts the EXIF orientation tag, defaulting to 1 when the
// source carries no usable EXIF data.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// remap builds a new image of the given size where every source pixel lands
// at the position computed by f.
func remap(img image.Image, width, height int, f func(x, y int) (int, int)) image.Image {
	src := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < src.Dy(); y++ {
		for x := 0; x < src.Dx(); x++ {
			nx, ny := f(x, y)
			out.Set(nx, ny, img.At(src.Min.X+x, src.Min.Y+y))
		}
	}
	return out
}

// ApplyOrientation rotates/mirrors the decoded image so the visual
// orientation recorded in EXIF is preserved after re-encoding.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	switch orientation {
	case 2: // mirrored horizontally
		return remap(img, w, h, func(x, y int) (int, int) { return w - 1 - x, y })
	case 3: // rotated 180
		return remap(img, w, h, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4: // mirrored vertically
		return remap(img, w, h, func(x, y int) (int, int) { return x, h - 1 - y })
	case 5: // transposed
		return remap(img, h, w, func(x, y int) (int, int) { return y, x })
	case 6: // rotated 90 CW
		return remap(img, h, w, func(x, y int) (int, int) { return h - 1 - y, x })
	case 7: // transversed
		return remap(img, h, w, func(x, y int) (int, int) { return h - 1 - y, w - 1 - x })
	case 8: // rotated 90 CCW
		return remap(img, h, w, func(x, y int) (int, int) { return y, w - 1 - x })
	default:
		return img
	}
}

// targetSize scales (width, height) down to fit the caps while preserving
// the aspect ratio. Images already within the caps keep their size.
func targetSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	scaleX := float64(maxWidth) / float64(width)
	scaleY := float64(maxHeight) / float64(height)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth > maxWidth {
		newWidth = maxWidth
	}
	if newHeight > maxHeight {
		newHeight = maxHeight
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return newWidth, newHeight
}

// Normalize decodes a user-supplied photo and re-encodes it as a JPEG whose
// dimensions fit the configured caps. The source orientation is applied, and
// transparency is flattened against the configured background. Every photo
// goes through this path; raw client bytes are never stored.
func Normalize(data []byte, opts Options) (*Payload, error) {
	orientation := Orientation(data)

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if orientation != 1 {
		img = ApplyOrientation(img, orientation)
		log.Infof("Applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	newWidth, newHeight := targetSize(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)

	flat := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(flat, flat.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	log.Infof("Photo normalized: %s %dx%d -> jpeg %dx%d (%d bytes -> %d bytes)",
		format, bounds.Dx(), bounds.Dy(), newWidth, newHeight, len(data), buf.Len())

	return &Payload{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Width:    newWidth,
		Height:   newHeight,
	}, nil
}

// DecodeDataURL splits a "data:image/...;base64," URL into raw bytes and the
// declared MIME type.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", fmt.Errorf("not a data URL")
	}
	sep := strings.Index(dataURL, ",")
	if sep < 0 {
		return nil, "", fmt.Errorf("malformed data URL: missing payload")
	}
	meta := dataURL[len("data:"):sep]
	mimeType := meta
	if i := strings.Index(meta, ";"); i >= 0 {
		mimeType = meta[:i]
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[sep+1:])
	if err != nil {
		return nil, "", fmt.Errorf("malformed data URL payload: %w", err)
	}
	return data, mimeType, nil
}

// EncodeDataURL renders a payload back into the submission wire format.
func EncodeDataURL(p *Payload) string {
	return "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}
