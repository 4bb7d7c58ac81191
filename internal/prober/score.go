package prober

// Curve maps a round-trip time in milliseconds to a score, used when an
// upstream does not report a score of its own. Higher is better.
type Curve struct {
	FastMillis float64 // below this, the score is MaxScore
	SlowMillis float64 // at or above this, the slow slope applies
	MidSlope   float64 // per-millisecond penalty between fast and slow
	SlowSlope  float64 // per-millisecond penalty at or above slow
	MaxScore   float64
	MinScore   float64
}

// DefaultCurve returns the historical scoring constants: full marks
// under 100ms, 0.2 points lost per millisecond up to 500ms, then a
// gentler 0.1 slope floored at 1 so a slow upstream still outranks an
// unreachable one.
func DefaultCurve() Curve {
	return Curve{
		FastMillis: 100,
		SlowMillis: 500,
		MidSlope:   0.2,
		SlowSlope:  0.1,
		MaxScore:   100,
		MinScore:   1,
	}
}

// Score computes the latency-derived score for a completed probe.
func (c Curve) Score(ms float64) float64 {
	switch {
	case ms < c.FastMillis:
		return c.MaxScore
	case ms < c.SlowMillis:
		return c.MaxScore - (ms-c.FastMillis)*c.MidSlope
	default:
		s := c.MaxScore - ms*c.SlowSlope
		if s < c.MinScore {
			return c.MinScore
		}
		return s
	}
}
