package aggregator

import "sort"

// p2Estimator implements the P² algorithm (Jain & Chlamtac, 1985) for
// estimating a single quantile from a data stream in O(1) memory,
// without storing samples. Used for the streaming p95_ms carried on
// every progress snapshot, since recomputing the exact histogram used
// for the terminal summary on every tick would be too expensive.
//
// No retrieved example repo implements P², so this is hand-rolled
// against the published algorithm rather than grounded on a pack file.
type p2Estimator struct {
	p       float64
	count   int
	initial []float64

	q    [5]float64
	n    [5]int
	npos [5]float64
	dn   [5]float64
}

func newP2(p float64) *p2Estimator {
	return &p2Estimator{p: p}
}

// Add folds one new observation into the estimator.
func (e *p2Estimator) Add(x float64) {
	if e.count < 5 {
		e.initial = append(e.initial, x)
		e.count++
		if e.count == 5 {
			sort.Float64s(e.initial)
			for i := 0; i < 5; i++ {
				e.q[i] = e.initial[i]
				e.n[i] = i + 1
			}
			e.npos = [5]float64{1, 1 + 2*e.p, 1 + 4*e.p, 3 + 2*e.p, 5}
			e.dn = [5]float64{0, e.p / 2, e.p, (1 + e.p) / 2, 1}
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if e.q[i] <= x && x < e.q[i+1] {
				k = i
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.npos[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.npos[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qNew := e.parabolic(i, sign)
			if e.q[i-1] < qNew && qNew < e.q[i+1] {
				e.q[i] = qNew
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *p2Estimator) parabolic(i, d int) float64 {
	df := float64(d)
	return e.q[i] + df/float64(e.n[i+1]-e.n[i-1])*(
		(float64(e.n[i]-e.n[i-1])+df)*(e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])+
			(float64(e.n[i+1]-e.n[i])-df)*(e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1]))
}

func (e *p2Estimator) linear(i, d int) float64 {
	j := i + d
	df := float64(d)
	return e.q[i] + df*(e.q[j]-e.q[i])/float64(e.n[j]-e.n[i])
}

// Value returns the current quantile estimate, or the exact value from
// the (small) sorted prefix before five samples have been seen.
func (e *p2Estimator) Value() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := append([]float64(nil), e.initial...)
		sort.Float64s(sorted)
		idx := int(e.p * float64(len(sorted)-1))
		return sorted[idx]
	}
	return e.q[2]
}
