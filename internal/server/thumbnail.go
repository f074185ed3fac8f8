package server

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	thumbJPEGQuality = 85
	thumbMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// thumbnail is a cover scaled down for display.
// Warning is set when the original was returned as-is.
type thumbnail struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	Warning   string
}

// makeThumbnail scales a raster cover down to width, keeping the aspect
// ratio. Images already narrower than width, animated GIFs and anything that
// cannot be decoded are returned unchanged with a Warning.
func makeThumbnail(input []byte, mediaType string, width int) (thumbnail, error) {
	out := thumbnail{Data: input, MediaType: mediaType}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height

	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if pixels > thumbMaxPixels {
		out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
		return out, nil
	}
	if width <= 0 || cfg.Width <= width {
		return out, nil
	}

	if strings.EqualFold(mediaType, "image/gif") {
		animated, err := isAnimatedGIF(input)
		if err == nil && animated {
			out.Warning = "animated gif left unscaled"
			return out, nil
		}
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}

	resized := imaging.Resize(src, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if strings.EqualFold(mediaType, "image/png") && hasAlpha(resized) {
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, resized); err != nil {
			return out, fmt.Errorf("png encode failed: %w", err)
		}
		out.MediaType = "image/png"
	} else {
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
			return out, fmt.Errorf("jpeg encode failed: %w", err)
		}
		out.MediaType = "image/jpeg"
	}

	out.Data = buf.Bytes()
	out.Width = resized.Bounds().Dx()
	out.Height = resized.Bounds().Dy()
	return out, nil
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
