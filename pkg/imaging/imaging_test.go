package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	errs "describer/pkg/errors"
	"describer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyImage is hard to compress, so scaling it down reliably shrinks the file
func noisyImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewArtifact(t *testing.T) {
	a, err := NewArtifact("t3_a", encodePNG(t, noisyImage(40, 30)))
	require.NoError(t, err)
	assert.Equal(t, 40, a.Width)
	assert.Equal(t, 30, a.Height)
	assert.Equal(t, "png", a.Format)
	assert.Equal(t, "t3_a", a.CandidateID)

	_, err = NewArtifact("t3_b", []byte("<html>"))
	assert.Error(t, err)
}

func TestShrinkJPEG(t *testing.T) {
	in, err := NewArtifact("t3_a", encodeJPEG(t, noisyImage(200, 100)))
	require.NoError(t, err)

	out, err := Shrink(context.Background(), in, 0.9)
	require.NoError(t, err)

	assert.Equal(t, 180, out.Width)
	assert.Equal(t, 90, out.Height)
	assert.Equal(t, "jpeg", out.Format)
	assert.Equal(t, "t3_a", out.CandidateID)
	assert.Less(t, out.Size(), in.Size())
	assert.Equal(t, 200, in.Width, "input must not change")
}

func TestShrinkPNGStrictlyReduces(t *testing.T) {
	a, err := NewArtifact("f1", encodePNG(t, noisyImage(120, 120)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		next, err := Shrink(context.Background(), a, 0.9)
		require.NoError(t, err)
		assert.Less(t, next.Size(), a.Size())
		a = next
	}
	assert.Equal(t, 87, a.Width)
}

func TestShrinkUndecodable(t *testing.T) {
	_, err := Shrink(context.Background(), &models.Artifact{CandidateID: "bad", Data: []byte("not an image")}, 0.9)

	var te *errs.TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "bad", te.CandidateID)
}

func TestShrinkRejectsBadScale(t *testing.T) {
	a := &models.Artifact{CandidateID: "x", Data: []byte{1}}
	for _, scale := range []float64{0, 1, 1.2, -0.5} {
		_, err := Shrink(context.Background(), a, scale)
		assert.Error(t, err, "scale %v", scale)
	}
}
