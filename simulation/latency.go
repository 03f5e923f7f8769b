package simulation

import "math/rand"

// LatencyConfig describes the link model between two peers.
type LatencyConfig struct {
	// Base propagation delay of a link is drawn uniformly from [MinBase, MaxBase].
	MinBase float64 `yaml:"min_base"`
	MaxBase float64 `yaml:"max_base"`
	// Mean queuing delay on a link is QueueFactor divided by the link bandwidth.
	QueueFactor float64 `yaml:"queue_factor"`
	// Bandwidth of a link between two fast peers.
	FastBandwidth float64 `yaml:"fast_bandwidth"`
	// Bandwidth of every other link.
	SlowBandwidth float64 `yaml:"slow_bandwidth"`
}

func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		MinBase:       10,
		MaxBase:       500,
		QueueFactor:   96,
		FastBandwidth: 100,
		SlowBandwidth: 5,
	}
}

// LatencyModel returns message delays between peers. Base delays are fixed
// at construction, queuing delays are sampled per message.
type LatencyModel struct {
	base [][]float64
	fast []bool
	cfg  LatencyConfig
	rng  *rand.Rand
}

func NewLatencyModel(rng *rand.Rand, fast []bool, cfg LatencyConfig) *LatencyModel {
	n := len(fast)
	base := make([][]float64, n)
	for i := range base {
		base[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := cfg.MinBase + rng.Float64()*(cfg.MaxBase-cfg.MinBase)
			base[i][j] = d
			base[j][i] = d
		}
	}
	return &LatencyModel{base: base, fast: fast, cfg: cfg, rng: rng}
}

// Bandwidth returns the bandwidth class of the link between i and j.
func (l *LatencyModel) Bandwidth(i, j int) float64 {
	if l.fast[i] && l.fast[j] {
		return l.cfg.FastBandwidth
	}
	return l.cfg.SlowBandwidth
}

// Base returns the fixed propagation delay between i and j.
func (l *LatencyModel) Base(i, j int) float64 {
	return l.base[i][j]
}

// Latency samples the delay of a message of size transactions from i to j.
func (l *LatencyModel) Latency(i, j int, size int) float64 {
	if i == j {
		return 0
	}
	c := l.Bandwidth(i, j)
	queue := l.rng.ExpFloat64() * l.cfg.QueueFactor / c
	return l.base[i][j] + queue + float64(size)/c
}

// drawClasses flags each of n nodes as fast with probability fraction.
func drawClasses(rng *rand.Rand, n int, fraction float64) []bool {
	fast := make([]bool, n)
	for i := range fast {
		fast[i] = rng.Float64() < fraction
	}
	return fast
}
