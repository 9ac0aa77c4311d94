package analytics

import "math"

// RollingWindow keeps the last windowSize values in a ring buffer with
// running sum and sum-of-squares, so mean and stddev are O(1) per update.
type RollingWindow struct {
	windowSize int
	values     []float64
	index      int
	count      int
	sum        float64
	sumSquares float64
}

func NewRollingWindow(size int) *RollingWindow {
	return &RollingWindow{
		windowSize: size,
		values:     make([]float64, size),
		index:      0,
		count:      0,
		sum:        0.0,
		sumSquares: 0.0,
	}
}

func (rw *RollingWindow) Add(value float64) {

	if rw.count < rw.windowSize {
		rw.values[rw.index] = value
		rw.sum += value
		rw.sumSquares += value * value
		rw.count++
		rw.index = (rw.index + 1) % rw.windowSize
	} else {

		oldValue := rw.values[rw.index]
		rw.values[rw.index] = value
		rw.sum = rw.sum - oldValue + value
		rw.sumSquares = rw.sumSquares - oldValue*oldValue + value*value
		rw.index = (rw.index + 1) % rw.windowSize
	}
}

func (rw *RollingWindow) Count() int {
	return rw.count
}

func (rw *RollingWindow) Full() bool {
	return rw.count == rw.windowSize
}

func (rw *RollingWindow) Mean() float64 {
	if rw.count == 0 {
		return 0.0
	}
	return rw.sum / float64(rw.count)
}

// StdDev is the population standard deviation over the current window.
// The running-sums form can go slightly negative from floating-point drift,
// so the variance is clamped at zero before the square root.
func (rw *RollingWindow) StdDev() float64 {
	if rw.count == 0 {
		return 0.0
	}
	n := float64(rw.count)
	mean := rw.sum / n
	variance := rw.sumSquares/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (rw *RollingWindow) GetValues() []float64 {
	if rw.count < rw.windowSize {
		return rw.values[:rw.count]
	}
	return rw.values
}
