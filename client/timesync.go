package client

// Smoothing is the weight of each new offset sample.
const Smoothing = 0.2

// TimeSync estimates host clock minus local clock from snapshot timestamps.
// The first sample seeds the estimate; later ones are blended in with
// offset = offset*(1-Smoothing) + sample*Smoothing.
type TimeSync struct {
	offset  float64
	samples int
}

// Observe folds in one snapshot stamped serverTime and received at local.
func (t *TimeSync) Observe(serverTime, local float64) {
	d := serverTime - local
	if t.samples == 0 {
		t.offset = d
	} else {
		t.offset = t.offset*(1-Smoothing) + d*Smoothing
	}
	t.samples++
}

func (t *TimeSync) Offset() float64 { return t.offset }

func (t *TimeSync) Samples() int { return t.samples }

// HostNow converts a local monotonic reading to host time.
func (t *TimeSync) HostNow(local float64) float64 {
	return local + t.offset
}

// Reset forgets the estimate, e.g. when a new match starts.
func (t *TimeSync) Reset() {
	*t = TimeSync{}
}
