package similarity

import "image"

// SSIM parameters (standard constants, 8-bit dynamic range).
const (
	ssimWindow = 8
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimL      = 255.0
)

// Structural scores images with a windowed structural-similarity
// computation over luminance. Robust to small rendering noise,
// sensitive to layout and content change. The candidate is resized to
// the reference's dimensions when they differ.
type Structural struct{}

// Name identifies the scorer in logs and diagnostics.
func (*Structural) Name() string { return "ssim" }

// Score returns the mean SSIM over non-overlapping windows, clamped
// to [0,1].
func (*Structural) Score(ref, candidate image.Image) float64 {
	candidate = normalizeTo(ref, candidate)

	a := grayPlane(ref)
	b := grayPlane(candidate)
	w := ref.Bounds().Dx()
	h := ref.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}

	c1 := (ssimK1 * ssimL) * (ssimK1 * ssimL)
	c2 := (ssimK2 * ssimL) * (ssimK2 * ssimL)

	var sum float64
	var windows int
	for wy := 0; wy < h; wy += ssimWindow {
		for wx := 0; wx < w; wx += ssimWindow {
			sum += windowSSIM(a, b, w, wx, wy, min(wx+ssimWindow, w), min(wy+ssimWindow, h), c1, c2)
			windows++
		}
	}
	return clamp01(sum / float64(windows))
}

// windowSSIM computes SSIM for one window [x0,x1)x[y0,y1).
func windowSSIM(a, b []float64, stride, x0, y0, x1, y1 int, c1, c2 float64) float64 {
	n := float64((x1 - x0) * (y1 - y0))

	var meanA, meanB float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			meanA += a[y*stride+x]
			meanB += b[y*stride+x]
		}
	}
	meanA /= n
	meanB /= n

	var varA, varB, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			da := a[y*stride+x] - meanA
			db := b[y*stride+x] - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*meanA*meanB + c1) * (2*cov + c2)
	den := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	return num / den
}

// grayPlane extracts the luminance plane as a flat row-major slice.
func grayPlane(img image.Image) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			plane[y*w+x] = luma(r, g, b)
		}
	}
	return plane
}
