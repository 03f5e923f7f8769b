package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/shreekarashastry/powsim/log"
	"github.com/shreekarashastry/powsim/simulation"
	"github.com/shreekarashastry/powsim/viz"
)

// attackerFlags collects repeated -attacker flags of the form
// strategy:hashpower[:policy[:trail]].
type attackerFlags []simulation.AttackerConfig

func (a *attackerFlags) String() string {
	parts := make([]string, len(*a))
	for i, at := range *a {
		parts[i] = fmt.Sprintf("%s:%v", at.Strategy, at.HashPower)
	}
	return strings.Join(parts, ",")
}

func (a *attackerFlags) Set(value string) error {
	fields := strings.Split(value, ":")
	if len(fields) < 2 || len(fields) > 4 {
		return fmt.Errorf("expected strategy:hashpower[:policy[:trail]], got %q", value)
	}
	power, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("hash power %q: %w", fields[1], err)
	}
	at := simulation.AttackerConfig{Strategy: fields[0], HashPower: power}
	if len(fields) > 2 {
		at.Policy = fields[2]
	}
	if len(fields) > 3 {
		if at.Trail, err = strconv.Atoi(fields[3]); err != nil {
			return fmt.Errorf("trail %q: %w", fields[3], err)
		}
	}
	*a = append(*a, at)
	return nil
}

var (
	configPath    *string
	numNodes      *int
	fastNetwork   *float64
	fastCPU       *float64
	txMeanGap     *float64
	maxEvents     *int
	blockInterval *float64
	seed          *int64
	gossip        *bool
	dumpPath      *string
	vizPath       *string
	logLevel      *string
	logFile       *string
	attackers     attackerFlags
)

func init() {
	configPath = flag.String("config", "", "path to a YAML simulation config")
	numNodes = flag.Int("n", 0, "number of nodes")
	fastNetwork = flag.Float64("z0", -1, "fraction of nodes with a fast network link")
	fastCPU = flag.Float64("z1", -1, "fraction of nodes with a fast CPU")
	txMeanGap = flag.Float64("ttx", 0, "mean time between transactions of a peer")
	maxEvents = flag.Int("events", 0, "number of events to simulate")
	blockInterval = flag.Float64("interval", -1, "mean network block interval, 0 mines immediately")
	seed = flag.Int64("seed", 0, "random seed, 0 seeds from the clock")
	gossip = flag.Bool("gossip", false, "re-relay transactions across the whole network")
	dumpPath = flag.String("dump", "", "write every node's ledger to this file")
	vizPath = flag.String("viz", "", "write CSV graphs with this path prefix")
	logLevel = flag.String("log-level", "info", "log level")
	logFile = flag.String("log-file", "", "also log into this rotating file")
	flag.Var(&attackers, "attacker", "withholding node as strategy:hashpower[:policy[:trail]], repeatable")
}

func main() {
	flag.Parse()
	log.SetGlobalLogger(*logFile, *logLevel)

	cfg, err := loadConfig()
	if err != nil {
		log.Global.WithField("err", err).Fatal("Could not load config")
	}

	sim, err := simulation.NewSimulation(cfg)
	if err != nil {
		log.Global.WithField("err", err).Fatal("Could not build simulation")
	}
	report, err := sim.Run()
	if err != nil {
		log.Global.WithField("err", err).Fatal("Simulation failed")
	}
	printReport(report)

	if *dumpPath != "" {
		if err := sim.WriteLedgerFile(*dumpPath); err != nil {
			log.Global.WithField("err", err).Error("Could not write ledger")
		}
	}
	if *vizPath != "" {
		if err := writeViz(sim, *vizPath); err != nil {
			log.Global.WithField("err", err).Error("Could not write graphs")
		}
	}
}

// loadConfig reads -config if given and applies the flags that were set on
// top of it.
func loadConfig() (*simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = simulation.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Nodes = *numNodes
		case "z0":
			cfg.FastNetworkFraction = *fastNetwork
		case "z1":
			cfg.FastCPUFraction = *fastCPU
		case "ttx":
			cfg.TxMeanGap = *txMeanGap
		case "events":
			cfg.MaxEvents = *maxEvents
		case "interval":
			cfg.BlockInterval = *blockInterval
		case "seed":
			cfg.Seed = *seed
		case "gossip":
			cfg.GossipTransactions = *gossip
		case "attacker":
			cfg.Attackers = attackers
		}
	})
	return cfg, nil
}

func printReport(r *simulation.Report) {
	fmt.Printf("Run %s: %d events, simulated time %.2f\n", r.RunID, r.Events, r.SimTime)
	if r.Exhausted {
		fmt.Println("Event queue drained before the event budget was spent")
	}
	fmt.Printf("Blocks mined: %d, final chain length: %d\n", r.TotalMined, r.FinalChainLength)
	fmt.Printf("MPU(total): %.4f\n", r.MPUTotal)
	for _, a := range r.Attackers {
		fmt.Printf("Node %d (%s, %.2f hash power): mined %d, on chain %d, MPU(adv) %.4f\n",
			a.Node, a.Strategy, a.HashPower, a.Mined, a.OnChain, a.MPU)
	}
}

func writeViz(sim *simulation.Simulation, prefix string) error {
	if err := viz.WriteTopologyCSV(prefix+"-topology", sim.Adjacency()); err != nil {
		return err
	}
	for i := 0; i < sim.NumNodes(); i++ {
		if err := viz.WriteChainCSV(fmt.Sprintf("%s-node%d", prefix, i), sim.Blocks(i)); err != nil {
			return err
		}
	}
	return nil
}
