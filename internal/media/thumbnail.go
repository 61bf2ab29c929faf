package media

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/go-faster/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 80

// checkDimensions reads only the image header and rejects images whose
// pixel count exceeds maxPixels.
func checkDimensions(data []byte, maxPixels int64) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(ErrNotImage, err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Wrap(ErrNotImage, "image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return errors.Wrapf(ErrTooLarge, "image is %dx%d pixels", cfg.Width, cfg.Height)
	}
	return nil
}

// thumbnail decodes an image and renders a JPEG no wider than width,
// preserving the aspect ratio. Smaller images are re-encoded as is.
func thumbnail(data []byte, width int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("image has no pixels")
	}
	if b.Dx() < width {
		width = b.Dx()
	}
	height := max(b.Dy()*width/b.Dx(), 1)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, errors.Wrap(err, "encode thumbnail")
	}
	return buf.Bytes(), nil
}
