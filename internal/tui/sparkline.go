package tui

// sparklineChars maps values 0..7 to Unicode block elements ▁▂▃▄▅▆▇█.
var sparklineChars = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RateHistory is a fixed-capacity circular buffer of byte-rate samples,
// backing the throughput sparkline.
type RateHistory struct {
	data  []float64
	head  int
	count int
}

// NewRateHistory creates a history with the given capacity.
func NewRateHistory(capacity int) *RateHistory {
	if capacity <= 0 {
		capacity = 1
	}
	return &RateHistory{data: make([]float64, capacity)}
}

// Push adds a sample, overwriting the oldest if full.
func (r *RateHistory) Push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Len returns the number of valid samples.
func (r *RateHistory) Len() int { return r.count }

// Slice returns samples in chronological order, oldest first.
func (r *RateHistory) Slice() []float64 {
	if r.count == 0 {
		return nil
	}
	result := make([]float64, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.data)
	}
	for i := 0; i < r.count; i++ {
		result[i] = r.data[(start+i)%len(r.data)]
	}
	return result
}

// Resize changes the capacity, preserving the most recent samples that fit.
func (r *RateHistory) Resize(newCap int) {
	if newCap <= 0 {
		newCap = 1
	}
	if newCap == len(r.data) {
		return
	}
	old := r.Slice()
	r.data = make([]float64, newCap)
	r.head = 0
	r.count = 0
	start := 0
	if len(old) > newCap {
		start = len(old) - newCap
	}
	for _, v := range old[start:] {
		r.Push(v)
	}
}

// RenderSparkline converts rate samples into a sparkline string using
// Unicode blocks, scaled against the window's own maximum.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	runes := make([]rune, len(values))
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		idx := 0
		if max > 0 {
			idx = int(v / max * 7.0)
		}
		if idx > 7 {
			idx = 7
		}
		runes[i] = sparklineChars[idx]
	}
	return string(runes)
}
