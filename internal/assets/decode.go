package assets

import (
	"fmt"
	"image"
	"os"

	"media-catalog/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// maxImageDimension is the largest width or height decoded at full
	// size; anything beyond is downscaled while loading.
	maxImageDimension = 4096

	// maxImagePixels caps total pixels; ~20MP is ~80MB decoded RGBA.
	maxImagePixels = 20_000_000
)

// loadImageConstrained decodes an image, downscaling when it exceeds
// the size limits so one huge source cannot exhaust memory.
func loadImageConstrained(path string) (image.Image, error) {
	width, height, err := imageDimensions(path)
	if err != nil {
		logging.Debug("Could not pre-check dimensions of %s: %v", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	pixels := width * height
	if width <= maxImageDimension && height <= maxImageDimension && pixels <= maxImagePixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height
	if width > maxImageDimension || height > maxImageDimension {
		if width > height {
			targetWidth = maxImageDimension
			targetHeight = height * maxImageDimension / width
		} else {
			targetHeight = maxImageDimension
			targetWidth = width * maxImageDimension / height
		}
	}
	if targetWidth*targetHeight > maxImagePixels {
		scale := float64(maxImagePixels) / float64(targetWidth*targetHeight)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d",
		path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// imageDimensions reads the header only, without a full decode.
func imageDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}
