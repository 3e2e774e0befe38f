package rfid

import "math"

// MaxQ is the largest slot-count exponent a Query can carry.
const MaxQ = 15

// QController is the reader's Q-adjustment feedback loop. It keeps the
// floating estimate QFp in [0, MaxQ]; the integer Q only moves, by exactly
// one, when the rounded estimate is one away from it.
type QController struct {
	Strategy QStrategy
	Delta    float64 // step of the fixed-step rule
	QFp      float64
}

// NewQController starts the estimate at q.
func NewQController(strategy QStrategy, delta float64, q int) *QController {
	return &QController{Strategy: strategy, Delta: delta, QFp: float64(q)}
}

// step returns the magnitude of one adjustment at integer Q. The adaptive
// rule takes large steps near Q = 0 and small ones near Q = 15.
func (c *QController) step(q int) float64 {
	if c.Strategy == QAdaptiveStep {
		return math.Max(0.1, 0.5/(1+0.04*float64(q)))
	}
	return c.Delta
}

// Feed nudges QFp in direction (+1 after a collision, -1 after an empty
// slot) and returns the new integer Q and whether it differs from q.
func (c *QController) Feed(q, direction int) (int, bool) {
	switch {
	case direction > 0:
		c.QFp = math.Min(MaxQ, c.QFp+c.step(q))
	case direction < 0:
		c.QFp = math.Max(0, c.QFp-c.step(q))
	}
	next := int(math.RoundToEven(c.QFp))
	if next-q == 1 || q-next == 1 {
		return next, true
	}
	return q, false
}
