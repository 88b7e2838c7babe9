package rt

import "math"

// quantile implements the P² algorithm for streaming quantile estimation:
// O(1) per-observation updates and O(1) retrieval, without storing
// observations. Ported from the teacher's pSquareQuantile (psquare.go).
//
// Reference: Jain, R. and Chlamtac, I. (1985). "The P^2 Algorithm for
// Dynamic Calculation of Quantiles and Histograms Without Storing
// Observations". Communications of the ACM, 28(10), pp. 1076-1085.
//
// Not safe for concurrent use; callers serialize access (Metrics does, via
// its own mutex).
type quantile struct {
	p          float64
	q          [5]float64
	n          [5]int
	np         [5]float64
	dn         [5]float64
	count      int
	initBuffer [5]float64
}

func newQuantile(p float64) *quantile {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &quantile{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

func (q *quantile) Update(x float64) {
	q.count++
	if q.count <= 5 {
		q.initBuffer[q.count-1] = x
		if q.count == 5 {
			q.initialize()
		}
		return
	}

	var k int
	if x < q.q[0] {
		q.q[0] = x
		k = 0
	} else if x >= q.q[4] {
		q.q[4] = x
		k = 3
	} else {
		for k = 0; k < 4; k++ {
			if q.q[k] <= x && x < q.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		q.n[i]++
	}
	for i := 0; i < 5; i++ {
		q.np[i] += q.dn[i]
	}
	for i := 1; i < 4; i++ {
		d := q.np[i] - float64(q.n[i])
		if (d >= 1 && q.n[i+1]-q.n[i] > 1) || (d <= -1 && q.n[i-1]-q.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := q.parabolic(i, sign)
			if q.q[i-1] < qPrime && qPrime < q.q[i+1] {
				q.q[i] = qPrime
			} else {
				q.q[i] = q.linear(i, sign)
			}
			q.n[i] += sign
		}
	}
}

func (q *quantile) initialize() {
	for i := 1; i < 5; i++ {
		key := q.initBuffer[i]
		j := i - 1
		for j >= 0 && q.initBuffer[j] > key {
			q.initBuffer[j+1] = q.initBuffer[j]
			j--
		}
		q.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		q.q[i] = q.initBuffer[i]
		q.n[i] = i
	}
	q.np = [5]float64{0, 2 * q.p, 4 * q.p, 2 + 2*q.p, 4}
}

func (q *quantile) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(q.n[i])
	niPrev := float64(q.n[i-1])
	niNext := float64(q.n[i+1])
	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (q.q[i+1] - q.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (q.q[i] - q.q[i-1]) / (ni - niPrev)
	return q.q[i] + term1*(term2+term3)
}

func (q *quantile) linear(i, d int) float64 {
	if d == 1 {
		return q.q[i] + (q.q[i+1]-q.q[i])/float64(q.n[i+1]-q.n[i])
	}
	return q.q[i] - (q.q[i]-q.q[i-1])/float64(q.n[i]-q.n[i-1])
}

// Quantile returns the current estimate.
func (q *quantile) Quantile() float64 {
	if q.count == 0 {
		return 0
	}
	if q.count < 5 {
		sorted := make([]float64, q.count)
		copy(sorted, q.initBuffer[:q.count])
		for i := 1; i < q.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(q.count-1) * q.p)
		if index >= q.count {
			index = q.count - 1
		}
		return sorted[index]
	}
	return q.q[2]
}

// Metrics tracks scheduling-latency and queue-depth percentiles for an
// execution context, gated by the context's WithMetrics option — ported
// from the teacher's pSquareMultiQuantile (psquare.go) paired with its
// metrics.go collection points.
//
// Not safe for concurrent use without external synchronization; Observe
// and Snapshot are always called from the owning context's single
// driving goroutine.
type Metrics struct {
	enabled  bool
	p50      *quantile
	p99      *quantile
	sum      float64
	count    int
	max      float64
	maxDepth int
}

// NewMetrics returns a Metrics collector; enabled gates whether Observe
// does any work, so a disabled collector costs one branch per call.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{
		enabled: enabled,
		p50:     newQuantile(0.50),
		p99:     newQuantile(0.99),
		max:     -math.MaxFloat64,
	}
}

// Enabled reports whether this collector records observations.
func (m *Metrics) Enabled() bool { return m.enabled }

// ObserveLatency records one scheduling-latency sample, in seconds
// (typically time from an operation's Schedule() call to its Finish()).
func (m *Metrics) ObserveLatency(seconds float64) {
	if !m.enabled {
		return
	}
	m.count++
	m.sum += seconds
	if seconds > m.max {
		m.max = seconds
	}
	m.p50.Update(seconds)
	m.p99.Update(seconds)
}

// ObserveQueueDepth records the ready-queue depth at one poll iteration.
func (m *Metrics) ObserveQueueDepth(depth int) {
	if !m.enabled {
		return
	}
	if depth > m.maxDepth {
		m.maxDepth = depth
	}
}

// Snapshot is a point-in-time read of the collected percentiles.
type Snapshot struct {
	Count          int
	MeanLatency    float64
	P50Latency     float64
	P99Latency     float64
	MaxLatency     float64
	MaxQueueDepth  int
}

// Snapshot returns the current percentile estimates.
func (m *Metrics) Snapshot() Snapshot {
	mean := 0.0
	if m.count > 0 {
		mean = m.sum / float64(m.count)
	}
	max := m.max
	if m.count == 0 {
		max = 0
	}
	return Snapshot{
		Count:         m.count,
		MeanLatency:   mean,
		P50Latency:    m.p50.Quantile(),
		P99Latency:    m.p99.Quantile(),
		MaxLatency:    max,
		MaxQueueDepth: m.maxDepth,
	}
}
