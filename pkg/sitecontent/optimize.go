package sitecontent

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/nfnt/resize"
)

// JPEGQuality is the fixed quality used when re-encoding JPEG images
const JPEGQuality = 80

// MaxDecodePixels caps the declared width*height of an image that will be
// decoded. Larger images are stored as uploaded.
const MaxDecodePixels = 50_000_000

// ImagePolicy bounds the dimensions and byte size of stored images
type ImagePolicy struct {
	MaxDimension int
	MaxSizeKB    int
}

// PolicyFromConfig extracts the image policy from an admin config
func PolicyFromConfig(cfg AdminConfig) ImagePolicy {
	cfg = cfg.WithDefaults()
	return ImagePolicy{MaxDimension: cfg.MaxDimension, MaxSizeKB: cfg.MaxSizeKB}
}

// OptimizeResult is the outcome of Optimize. Data is always usable: it holds
// either the transformed bytes or the original ones.
type OptimizeResult struct {
	Data      []byte
	Format    string
	Width     int
	Height    int
	Resized   bool
	Optimized bool
	// Err is set when the transform failed and Data fell back to the original.
	// It matches ErrOptimizationFailed.
	Err error
}

// Optimize applies the image policy to data. Non-image media types and formats
// without an encoder are returned untouched. Any failure falls back to the
// original bytes and is reported in OptimizeResult.Err, never as a panic.
func Optimize(data []byte, mediaType string, policy ImagePolicy) (result OptimizeResult) {
	result = OptimizeResult{Data: data}
	if !strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result = OptimizeResult{Data: data, Err: fmt.Errorf("%w: %v", ErrOptimizationFailed, r)}
		}
	}()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		// svg, webp and friends pass through
		return result
	}
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
		return result
	}
	result.Format = format
	result.Width, result.Height = cfg.Width, cfg.Height

	if format != "jpeg" && format != "png" {
		return result
	}

	// Decode allocates for the declared dimensions
	if int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		result.Err = fmt.Errorf("%w: %dx%d exceeds the %d pixel decode limit", ErrOptimizationFailed, cfg.Width, cfg.Height, MaxDecodePixels)
		return result
	}

	width, height, resized := fitWithin(cfg.Width, cfg.Height, policy.MaxDimension)
	oversize := policy.MaxSizeKB > 0 && len(data) > policy.MaxSizeKB*1024
	if !resized && !oversize {
		return result
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
		return result
	}
	if resized {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	}
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
		return result
	}

	if !resized && buf.Len() >= len(data) {
		return result
	}

	result.Data = buf.Bytes()
	result.Width, result.Height = width, height
	result.Resized = resized
	result.Optimized = true
	return result
}

// fitWithin scales (w, h) so the larger side equals max, preserving the aspect
// ratio. Images already within max are never enlarged.
func fitWithin(w, h, max int) (int, int, bool) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h, false
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(max) / float64(w)))
		if nh < 1 {
			nh = 1
		}
		return max, nh, true
	}
	nw := int(math.Round(float64(w) * float64(max) / float64(h)))
	if nw < 1 {
		nw = 1
	}
	return nw, max, true
}
