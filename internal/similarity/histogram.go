package similarity

import (
	"image"
	"math"
)

// DefaultHistogramBins is the per-channel bin count used when Bins is zero.
const DefaultHistogramBins = 8

// Histogram scores images by correlating their joined per-channel
// color histograms. Robust to large layout shifts with similar color
// balance, cheap to compute, and independent of image dimensions.
type Histogram struct {
	// Bins is the number of bins per color channel.
	// If this is 0, DefaultHistogramBins is used.
	Bins int
}

// Name identifies the scorer in logs and diagnostics.
func (*Histogram) Name() string { return "histogram" }

// Score returns the cosine correlation of the two color histograms,
// clamped to [0,1].
func (hg *Histogram) Score(ref, candidate image.Image) float64 {
	h1 := hg.histogram(ref)
	h2 := hg.histogram(candidate)

	var dot, mag1, mag2 float64
	for i := range h1 {
		dot += h1[i] * h2[i]
		mag1 += h1[i] * h1[i]
		mag2 += h2[i] * h2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(mag1) * math.Sqrt(mag2)))
}

// histogram builds the joined R,G,B histogram as one vector.
func (hg *Histogram) histogram(img image.Image) []float64 {
	bins := hg.Bins
	if bins == 0 {
		bins = DefaultHistogramBins
	}

	hist := make([]float64, bins*3)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			hist[binIdx(r, bins)]++
			hist[bins+binIdx(g, bins)]++
			hist[2*bins+binIdx(b, bins)]++
		}
	}
	return hist
}

// binIdx maps a 16-bit color component to its bin.
func binIdx(component uint32, bins int) int {
	idx := int(float64(bins) * float64(component) / 0xffff)
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}
