package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// AttackerConfig places one withholding miner in the network.
type AttackerConfig struct {
	// Share of the total hashing power, in (0, 1).
	HashPower float64 `yaml:"hash_power"`
	// "selfish" or "stubborn".
	Strategy string `yaml:"strategy"`
	// Publish policy preset, see Policies. Defaults to the strategy's own
	// preset: selfish for selfish, lead-stubborn for stubborn.
	Policy string `yaml:"policy"`
	// How many blocks a trail-stubborn attacker may fall behind before it
	// gives up its private chain.
	Trail int `yaml:"trail"`
}

type Config struct {
	// Number of nodes in the network.
	Nodes int `yaml:"nodes"`
	// Fraction of nodes with a fast network link.
	FastNetworkFraction float64 `yaml:"fast_network_fraction"`
	// Fraction of nodes with a fast CPU. Fast CPUs get ten times the hashing
	// power of slow ones.
	FastCPUFraction float64 `yaml:"fast_cpu_fraction"`
	// Mean simulated time between two transactions of the same peer.
	TxMeanGap float64 `yaml:"tx_mean_gap"`
	// Largest amount of a generated transaction.
	MaxTxAmount int64 `yaml:"max_tx_amount"`
	// Re-relay transactions across the whole graph instead of only to the
	// originator's neighbors.
	GossipTransactions bool `yaml:"gossip_transactions"`
	// Pool size at which a node starts mining.
	MinPoolSize int `yaml:"min_pool_size"`
	// Mean time between blocks of the whole network. Zero mines a block one
	// time unit after a node becomes eligible.
	BlockInterval float64 `yaml:"block_interval"`
	BlockReward   int64   `yaml:"block_reward"`
	// Coins every account holds at genesis.
	InitialBalance int64 `yaml:"initial_balance"`
	// Number of events to execute. The simulated clock is unbounded.
	MaxEvents int `yaml:"max_events"`
	// Minimum degree of the gossip graph is drawn from these choices.
	MinDegreeChoices []int `yaml:"min_degree_choices"`
	// Graphs are regenerated at most this many times until connected.
	MaxTopologyRetries int              `yaml:"max_topology_retries"`
	Latency            LatencyConfig    `yaml:"latency"`
	Attackers          []AttackerConfig `yaml:"attackers"`
	// Random seed. Zero seeds from the wall clock.
	Seed int64 `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Nodes:               10,
		FastNetworkFraction: 0.5,
		FastCPUFraction:     0.5,
		TxMeanGap:           15,
		MaxTxAmount:         50,
		MinPoolSize:         10,
		BlockReward:         50,
		InitialBalance:      1200000,
		MaxEvents:           10000,
		MinDegreeChoices:    []int{3, 4, 5, 6},
		MaxTopologyRetries:  1000,
		Latency:             DefaultLatencyConfig(),
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	switch {
	case c.Nodes <= 0:
		return invalid("nodes must be positive, got %d", c.Nodes)
	case c.FastNetworkFraction < 0 || c.FastNetworkFraction > 1:
		return invalid("fast_network_fraction must be in [0,1], got %v", c.FastNetworkFraction)
	case c.FastCPUFraction < 0 || c.FastCPUFraction > 1:
		return invalid("fast_cpu_fraction must be in [0,1], got %v", c.FastCPUFraction)
	case c.TxMeanGap <= 0:
		return invalid("tx_mean_gap must be positive, got %v", c.TxMeanGap)
	case c.MaxTxAmount <= 0:
		return invalid("max_tx_amount must be positive, got %d", c.MaxTxAmount)
	case c.MinPoolSize <= 0:
		return invalid("min_pool_size must be positive, got %d", c.MinPoolSize)
	case c.BlockInterval < 0:
		return invalid("block_interval must not be negative, got %v", c.BlockInterval)
	case c.BlockReward < 0:
		return invalid("block_reward must not be negative, got %d", c.BlockReward)
	case c.MaxEvents < 0:
		return invalid("max_events must not be negative, got %d", c.MaxEvents)
	case len(c.MinDegreeChoices) == 0:
		return invalid("min_degree_choices must not be empty")
	case c.MaxTopologyRetries <= 0:
		return invalid("max_topology_retries must be positive, got %d", c.MaxTopologyRetries)
	case len(c.Attackers) > c.Nodes:
		return invalid("%d attackers do not fit in %d nodes", len(c.Attackers), c.Nodes)
	}
	for _, d := range c.MinDegreeChoices {
		if d <= 0 {
			return invalid("min degree choices must be positive, got %d", d)
		}
	}

	l := c.Latency
	if l.MinBase < 0 || l.MaxBase < l.MinBase {
		return invalid("latency base range [%v,%v] is not valid", l.MinBase, l.MaxBase)
	}
	if l.QueueFactor < 0 || l.FastBandwidth <= 0 || l.SlowBandwidth <= 0 {
		return invalid("latency bandwidths must be positive and queue factor not negative")
	}

	total := 0.0
	for i, a := range c.Attackers {
		if a.HashPower <= 0 || a.HashPower >= 1 {
			return invalid("attacker %d hash_power must be in (0,1), got %v", i, a.HashPower)
		}
		strategy, err := ParseStrategy(a.Strategy)
		if err != nil {
			return err
		}
		if !strategy.Withholds() {
			return invalid("attacker %d strategy %q does not withhold blocks", i, a.Strategy)
		}
		if _, err := NewPolicy(a.policyName(strategy), a.Trail); err != nil {
			return fmt.Errorf("%w: attacker %d: %v", ErrInvalidConfig, i, err)
		}
		if a.Trail < 0 {
			return invalid("attacker %d trail must not be negative, got %d", i, a.Trail)
		}
		total += a.HashPower
	}
	if total > 1 || (total == 1 && len(c.Attackers) < c.Nodes) {
		return invalid("attackers hold %v of the hashing power, honest nodes need a share", total)
	}
	return nil
}

func (a AttackerConfig) policyName(strategy Strategy) string {
	if a.Policy != "" {
		return a.Policy
	}
	if strategy == Stubborn {
		return "lead-stubborn"
	}
	return "selfish"
}
