// Package imaging decodes and downscales candidate images so they fit the
// upload limit of the social API.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	errs "describer/pkg/errors"
	"describer/pkg/models"
)

// DefaultJPEGQuality is used when re-encoding JPEG images
const DefaultJPEGQuality = 90

// ErrNotSmaller is returned when no encoding of the scaled image beats the input size
var ErrNotSmaller = errors.New("scaled image is not smaller than the original")

// Probe reads the dimensions and format of an encoded image
func Probe(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// NewArtifact wraps downloaded bytes, filling in dimensions and format
func NewArtifact(candidateID string, data []byte) (*models.Artifact, error) {
	w, h, format, err := Probe(data)
	if err != nil {
		return nil, err
	}
	return &models.Artifact{CandidateID: candidateID, Data: data, Width: w, Height: h, Format: format}, nil
}

// Shrink scales a by scale (0 < scale < 1) in both dimensions and re-encodes it.
// The result is always strictly smaller than the input in bytes; the input is
// left untouched.
func Shrink(ctx context.Context, a *models.Artifact, scale float64) (*models.Artifact, error) {
	if scale <= 0 || scale >= 1 {
		return nil, &errs.TransformError{CandidateID: a.CandidateID, Cause: fmt.Errorf("scale %v out of range (0, 1)", scale)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return nil, &errs.TransformError{CandidateID: a.CandidateID, Cause: fmt.Errorf("failed to decode image: %w", err)}
	}

	b := src.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	data, outFormat, err := encodeSmaller(dst, format, a.Size())
	if err != nil {
		return nil, &errs.TransformError{CandidateID: a.CandidateID, Cause: err}
	}

	return &models.Artifact{
		CandidateID: a.CandidateID,
		Data:        data,
		Width:       w,
		Height:      h,
		Format:      outFormat,
	}, nil
}

// encodeSmaller keeps the original format when that shrinks the file and
// falls back to progressively lower JPEG quality otherwise
func encodeSmaller(img image.Image, format string, limit int64) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("failed to encode png: %w", err)
		}
		if int64(buf.Len()) < limit {
			return buf.Bytes(), "png", nil
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", fmt.Errorf("failed to encode gif: %w", err)
		}
		if int64(buf.Len()) < limit {
			return buf.Bytes(), "gif", nil
		}
	}

	for quality := DefaultJPEGQuality; quality >= 30; quality -= 15 {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
		if int64(buf.Len()) < limit {
			return buf.Bytes(), "jpeg", nil
		}
	}
	return nil, "", ErrNotSmaller
}
