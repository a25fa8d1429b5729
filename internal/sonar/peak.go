package sonar

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Full-Width-Half-Maximum peak localization.
//
// The dominant reflection in an ensemble is located by smoothing the
// intensity bins with a centered rolling median, thresholding at half the
// smoothed maximum, morphologically closing the binary result to bridge
// narrow valleys inside an otherwise-contiguous peak, and then walking
// outward from the maximum bin to the enclosing zeros.
//
// Degenerate inputs resolve deterministically (clamp policy, see
// peakClampToBounds): a peak touching either array end clamps to that
// end, and a signal-free array yields a zero-width peak at the maximum
// bin. Degenerate inputs are an expected edge case, never an error.

// peakClampToBounds names the degenerate-case policy: when no enclosing
// zero exists on a side, the peak boundary clamps to that end of the
// array instead of going undefined.
const peakClampToBounds = true

// locatePeak returns the start and end bin of the closed half-maximum run
// containing maxBin. start is the first bin of the run; end is the first
// zero bin at or after maxBin (or the last bin when the run touches the
// array end).
func locatePeak(intensity []float64, maxBin, medianLen, kernelLen int) (start, end int) {
	if len(intensity) == 0 {
		return 0, 0
	}

	smoothed := rollingMedian(intensity, medianLen)
	smoothedMax := floats.Max(smoothed)
	if smoothedMax <= 0 {
		// No signal anywhere: a zero-width peak at the maximum bin.
		return maxBin, maxBin
	}

	threshold := make([]float64, len(smoothed))
	for i, v := range smoothed {
		if v >= smoothedMax/2 {
			threshold[i] = 1
		}
	}
	closed := closeBinary(threshold, kernelLen)

	start = 0
	for i := maxBin - 1; i >= 0; i-- {
		if closed[i] == 0 {
			start = i + 1
			break
		}
	}

	end = len(intensity) - 1
	for i := maxBin; i < len(closed); i++ {
		if closed[i] == 0 {
			end = i
			break
		}
	}
	return start, end
}

// rollingMedian applies a centered rolling median of the given window
// length. Positions lacking a full window (the edges) are zero.
func rollingMedian(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window < 1 || len(x) < window {
		return out
	}
	half := window / 2
	buf := make([]float64, window)
	for i := half; i < len(x)-half; i++ {
		copy(buf, x[i-half:i+half+1])
		sort.Float64s(buf)
		out[i] = buf[half]
	}
	return out
}

// closeBinary convolves a 0/1 array with an all-ones kernel and
// re-binarizes: a bin is 1 when any bin within the kernel span is 1. This
// bridges gaps narrower than the kernel inside a peak.
func closeBinary(x []float64, kernel int) []float64 {
	out := make([]float64, len(x))
	if kernel < 1 {
		copy(out, x)
		return out
	}
	left := (kernel - 1) / 2
	right := kernel / 2
	for i := range x {
		lo := i - left
		if lo < 0 {
			lo = 0
		}
		hi := i + right
		if hi >= len(x) {
			hi = len(x) - 1
		}
		for j := lo; j <= hi; j++ {
			if x[j] != 0 {
				out[i] = 1
				break
			}
		}
	}
	return out
}
