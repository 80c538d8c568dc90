package light

// MovingAverage keeps the mean of the most recent measurements.
// It is not safe for concurrent use.
type MovingAverage struct {
	max     int
	samples []float64
	sum     float64
}

// NewMovingAverage creates an average over at most max samples (at least one).
func NewMovingAverage(max int) *MovingAverage {
	if max < 1 {
		max = 1
	}
	return &MovingAverage{
		max:     max,
		samples: make([]float64, 0, max),
	}
}

// Record adds a measurement, dropping the oldest ones beyond the window.
func (a *MovingAverage) Record(v float64) {
	for len(a.samples) >= a.max {
		a.sum -= a.samples[0]
		a.samples = a.samples[1:]
	}
	a.samples = append(a.samples, v)
	a.sum += v
}

// Average returns the mean of the recorded window, or 0 if nothing was recorded.
func (a *MovingAverage) Average() float64 {
	if len(a.samples) == 0 {
		return 0
	}
	return a.sum / float64(len(a.samples))
}

// Len returns the number of samples in the window.
func (a *MovingAverage) Len() int {
	return len(a.samples)
}
