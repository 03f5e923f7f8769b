package simulation

import (
	"math"
	"math/rand"
)

// Engine samples how long proof-of-work takes for a node.
//
// With a zero block interval the engine runs in immediate mode: a node that
// becomes eligible mines one time unit later and re-mining after a chain
// change is delayed by an exponential draw scaled by the per-block mining
// constant h = 1/(n + 9*fastCPUs). Withholding nodes have both delays
// stretched by (1/n)/hashPower, so an attacker above an even share mines
// faster than an honest node. With a positive interval every attempt is an
// exponential race whose mean is the interval divided by the node's share of
// the total hashing power.
type Engine struct {
	rng           *rand.Rand
	blockInterval float64
	h             float64
	evenShare     float64
}

func NewEngine(rng *rand.Rand, blockInterval float64, fastCPU []bool) *Engine {
	fastCount := 0
	for _, fast := range fastCPU {
		if fast {
			fastCount++
		}
	}
	return &Engine{
		rng:           rng,
		blockInterval: blockInterval,
		h:             1 / float64(len(fastCPU)+9*fastCount),
		evenShare:     1 / float64(len(fastCPU)),
	}
}

// Immediate reports whether blocks are mined as soon as a node is eligible.
func (e *Engine) Immediate() bool {
	return e.blockInterval <= 0
}

// MiningConstant is the per-block constant h used in immediate mode.
func (e *Engine) MiningConstant() float64 {
	return e.h
}

// SolveDelay is the time between a node becoming eligible and its block.
func (e *Engine) SolveDelay(n *Node) float64 {
	if e.Immediate() {
		return e.powerScale(n)
	}
	return e.powDelay(n)
}

// RetryDelay is the delay of a re-mine attempt after n's chain changed.
func (e *Engine) RetryDelay(n *Node) float64 {
	if !e.Immediate() {
		return e.powDelay(n)
	}
	mean := e.h
	if n.FastCPU() {
		mean = n.AverageLatency() / 10 * e.h
	}
	return e.rng.ExpFloat64() * mean * e.powerScale(n)
}

// powerScale stretches immediate-mode delays of withholding nodes by how far
// their hashing power falls short of an even share.
func (e *Engine) powerScale(n *Node) float64 {
	if !n.Strategy().Withholds() || n.HashPower() <= 0 {
		return 1
	}
	return e.evenShare / n.HashPower()
}

func (e *Engine) powDelay(n *Node) float64 {
	if n.HashPower() <= 0 {
		return math.Inf(1)
	}
	return e.rng.ExpFloat64() * e.blockInterval / n.HashPower()
}
