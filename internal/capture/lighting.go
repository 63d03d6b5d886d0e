package capture

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// BT.709 luma coefficients
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// lightingEstimator implements LightingEstimator. The scratch image and the
// sample slice are private to one estimator and reused across frames.
type lightingEstimator struct {
	thresholds Thresholds
	scratch    *image.RGBA
	samples    []float64
}

// NewLightingEstimator creates an estimator that downsamples frames to the
// configured working width before sampling
func NewLightingEstimator(t Thresholds) LightingEstimator {
	return &lightingEstimator{thresholds: t}
}

// Estimate downsamples the frame into the scratch buffer and classifies the
// mean luminance of every SampleStride-th pixel
func (le *lightingEstimator) Estimate(frame image.Image) (LightingQuality, float64, bool) {
	if frame == nil {
		return LightingDark, 0, false
	}
	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return LightingDark, 0, false
	}

	width := le.thresholds.SampleWidth
	if width <= 0 {
		width = DefaultThresholds().SampleWidth
	}
	height := int(math.Round(float64(bounds.Dy()) / float64(bounds.Dx()) * float64(width)))
	if height < 1 {
		height = 1
	}

	dst := le.scratchFor(width, height)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, bounds, draw.Src, nil)

	le.samples = sampleLuminance(dst.Pix, le.thresholds.SampleStride, le.samples[:0])
	if len(le.samples) == 0 {
		return LightingDark, 0, false
	}
	mean := stat.Mean(le.samples, nil)
	return ClassifyLuminance(mean, le.thresholds), mean, true
}

// scratchFor returns the scratch buffer resized to width x height, reusing
// its backing array when it is large enough
func (le *lightingEstimator) scratchFor(width, height int) *image.RGBA {
	rect := image.Rect(0, 0, width, height)
	if le.scratch != nil && le.scratch.Rect == rect {
		return le.scratch
	}

	size := 4 * width * height
	if le.scratch != nil && cap(le.scratch.Pix) >= size {
		le.scratch = &image.RGBA{Pix: le.scratch.Pix[:size], Stride: 4 * width, Rect: rect}
		return le.scratch
	}
	le.scratch = image.NewRGBA(rect)
	return le.scratch
}

// Luminance computes BT.709 relative luminance on the 0-255 scale
func Luminance(r, g, b uint8) float64 {
	return lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
}

// meanSampledLuminance returns the mean luminance of every stride-th pixel of
// an RGBA byte buffer, or 0 when nothing could be sampled
func meanSampledLuminance(pix []uint8, stride int) float64 {
	samples := sampleLuminance(pix, stride, nil)
	if len(samples) == 0 {
		return 0
	}
	return stat.Mean(samples, nil)
}

// ClassifyLuminance maps a mean luminance to a lighting level
func ClassifyLuminance(mean float64, t Thresholds) LightingQuality {
	switch {
	case mean > t.ExcellentLuminance:
		return LightingExcellent
	case mean > t.GoodLuminance:
		return LightingGood
	default:
		return LightingDark
	}
}

func sampleLuminance(pix []uint8, stride int, out []float64) []float64 {
	if stride <= 0 {
		stride = 1
	}
	step := 4 * stride
	for i := 0; i+2 < len(pix); i += step {
		out = append(out, Luminance(pix[i], pix[i+1], pix[i+2]))
	}
	return out
}
