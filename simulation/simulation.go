package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dominant-strategies/go-quai/event"
	uuid "github.com/satori/go.uuid"

	"github.com/shreekarashastry/powsim/log"
)

// ChainHeadEvent is sent whenever the tip of a node's longest chain changes.
type ChainHeadEvent struct {
	Node int
	Tip  *Block
	Time float64
}

// PublishEvent is sent whenever an attacker reveals withheld blocks.
type PublishEvent struct {
	Node   int
	Blocks []*Block
	Time   float64
}

// Simulation drives a network of peers through a single event queue. Events
// are executed one at a time in timestamp order, so nothing in here needs
// locking.
type Simulation struct {
	cfg   *Config
	runID string
	seed  int64
	rng   *rand.Rand

	queue   *EventQueue
	network *Network
	engine  *Engine

	nodes     []*Node
	peers     []*Peer
	attackers []int

	// Last announced tip per node.
	heads []*Block

	now       float64
	events    int
	exhausted bool

	chainHeadFeed event.Feed
	publishFeed   event.Feed
}

// NewSimulation builds the network described by cfg: speed classes, gossip
// graph, link latencies, attacker placement and hashing power. Every peer
// has its first transaction scheduled at time zero.
func NewSimulation(cfg *Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	n := cfg.Nodes

	fastNetwork := drawClasses(rng, n, cfg.FastNetworkFraction)
	fastCPU := drawClasses(rng, n, cfg.FastCPUFraction)

	minDegree := cfg.MinDegreeChoices[rng.Intn(len(cfg.MinDegreeChoices))]
	topology, err := GenerateTopology(rng, n, minDegree, cfg.MaxTopologyRetries)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{
		cfg:   cfg,
		runID: uuid.NewV4().String(),
		seed:  seed,
		rng:   rng,
		queue: NewEventQueue(),
		network: &Network{
			Topology: topology,
			Latency:  NewLatencyModel(rng, fastNetwork, cfg.Latency),
		},
		engine: NewEngine(rng, cfg.BlockInterval, fastCPU),
		nodes:  make([]*Node, n),
		peers:  make([]*Peer, n),
		heads:  make([]*Block, n),
	}

	nodeCfgs := make([]NodeConfig, n)
	for i := range nodeCfgs {
		nodeCfgs[i] = NodeConfig{
			FastNetwork:    fastNetwork[i],
			FastCPU:        fastCPU[i],
			Strategy:       Honest,
			MinPoolSize:    cfg.MinPoolSize,
			BlockReward:    cfg.BlockReward,
			InitialBalance: cfg.InitialBalance,
		}
	}

	// Attackers sit on random distinct nodes with a fixed share of the
	// hashing power.
	placement := rng.Perm(n)
	attackerPower := 0.0
	for i, a := range cfg.Attackers {
		id := placement[i]
		strategy, _ := ParseStrategy(a.Strategy)
		policy, _ := NewPolicy(a.policyName(strategy), a.Trail)
		nodeCfgs[id].Strategy = strategy
		nodeCfgs[id].Policy = policy
		nodeCfgs[id].HashPower = a.HashPower
		sim.attackers = append(sim.attackers, id)
		attackerPower += a.HashPower
	}

	// The rest of the hashing power goes to honest nodes, ten to one in
	// favour of fast CPUs.
	weight := 0.0
	for i := range nodeCfgs {
		if nodeCfgs[i].Strategy == Honest {
			weight += cpuWeight(fastCPU[i])
		}
	}
	for i := range nodeCfgs {
		if nodeCfgs[i].Strategy == Honest && weight > 0 {
			nodeCfgs[i].HashPower = (1 - attackerPower) * cpuWeight(fastCPU[i]) / weight
		}
	}

	peerCfg := PeerConfig{
		NumNodes:  n,
		TxMeanGap: cfg.TxMeanGap,
		MaxAmount: cfg.MaxTxAmount,
		Gossip:    cfg.GossipTransactions,
	}
	for i := 0; i < n; i++ {
		sim.nodes[i] = NewNode(i, nodeCfgs[i])
		sim.peers[i] = NewPeer(sim.nodes[i], topology.Neighbors(i), peerCfg)
		sim.heads[i] = sim.nodes[i].Chain().Genesis()
		sim.queue.Push(Event{Time: 0, Target: i, Action: GenerateTransaction{}})
	}

	log.Global.WithFields(log.Fields{
		"run":       sim.runID,
		"seed":      seed,
		"nodes":     n,
		"minDegree": topology.MinDegree(),
		"attackers": sim.attackers,
		"immediate": sim.engine.Immediate(),
	}).Info("Built simulation")
	return sim, nil
}

func cpuWeight(fast bool) float64 {
	if fast {
		return 10
	}
	return 1
}

// Run executes events until MaxEvents have run in total or the queue drains.
// Calling Run again after it returned continues from where it stopped.
func (sim *Simulation) Run() (*Report, error) {
	start := time.Now()
	log.Global.WithFields(log.Fields{
		"run":       sim.runID,
		"maxEvents": sim.cfg.MaxEvents,
	}).Info("Starting simulation")

	for sim.events < sim.cfg.MaxEvents {
		ev, err := sim.queue.Pop()
		if errors.Is(err, ErrEmptyQueue) {
			log.Global.WithFields(log.Fields{
				"run":    sim.runID,
				"events": sim.events,
				"time":   sim.now,
			}).Warn("Event queue drained before the event budget was spent")
			sim.exhausted = true
			break
		}
		if err := sim.dispatch(ev); err != nil {
			return nil, err
		}
	}

	for i, node := range sim.nodes {
		if orphans := node.Chain().Orphans(); orphans > 0 {
			log.Global.WithFields(log.Fields{
				"run":     sim.runID,
				"node":    i,
				"orphans": orphans,
			}).Warn("Blocks still waiting for their parent")
		}
	}

	report := sim.Report()
	log.Global.WithFields(log.Fields{
		"run":         sim.runID,
		"events":      report.Events,
		"time":        report.SimTime,
		"mined":       report.TotalMined,
		"chainLength": report.FinalChainLength,
		"elapsed":     time.Since(start),
	}).Info("Simulation finished")
	return report, nil
}

// Step executes the next event. It returns ErrEmptyQueue when nothing is
// scheduled.
func (sim *Simulation) Step() error {
	ev, err := sim.queue.Pop()
	if err != nil {
		return err
	}
	return sim.dispatch(ev)
}

func (sim *Simulation) context() *Context {
	return &Context{
		Now:         sim.now,
		Queue:       sim.queue,
		Network:     sim.network,
		Engine:      sim.engine,
		RNG:         sim.rng,
		publishFeed: &sim.publishFeed,
	}
}

func (sim *Simulation) dispatch(ev Event) error {
	if ev.Target < 0 || ev.Target >= len(sim.peers) {
		return fmt.Errorf("event %v: no peer %d", ev, ev.Target)
	}
	sim.now = ev.Time
	sim.events++
	ctx := sim.context()
	peer := sim.peers[ev.Target]
	node := peer.Node()

	switch a := ev.Action.(type) {
	case GenerateTransaction:
		peer.GenerateTransaction(ctx)
	case BroadcastTransaction:
		peer.BroadcastTransaction(ctx, a.Tx)
	case ReceiveTransaction:
		peer.ReceiveTransaction(ctx, a.Tx, a.From)
	case MineBlock:
		node.Mine(ctx, a.Attempt)
	case RetryMine:
		node.RetryMine(ctx, a)
	case PropagateBlock:
		peer.PropagateBlock(ctx, a.Block)
	case ReceiveBlock:
		before := node.MiningTip()
		peer.ReceiveBlock(ctx, a.Block)
		if node.MiningTip() != before {
			node.Restart(ctx)
		}
	default:
		return fmt.Errorf("event %v: unknown action %T", ev, ev.Action)
	}

	if tip := node.Chain().Tip(); tip != sim.heads[ev.Target] {
		sim.heads[ev.Target] = tip
		sim.chainHeadFeed.Send(ChainHeadEvent{Node: ev.Target, Tip: tip, Time: sim.now})
	}
	return nil
}

// SubscribeChainHead registers ch for ChainHeadEvents. Sends block until ch
// accepts the event, so subscribers must keep draining it while Run is
// executing.
func (sim *Simulation) SubscribeChainHead(ch chan<- ChainHeadEvent) event.Subscription {
	return sim.chainHeadFeed.Subscribe(ch)
}

// SubscribePublish registers ch for PublishEvents.
func (sim *Simulation) SubscribePublish(ch chan<- PublishEvent) event.Subscription {
	return sim.publishFeed.Subscribe(ch)
}

func (sim *Simulation) RunID() string     { return sim.runID }
func (sim *Simulation) Seed() int64       { return sim.seed }
func (sim *Simulation) Now() float64      { return sim.now }
func (sim *Simulation) Events() int       { return sim.events }
func (sim *Simulation) Config() *Config   { return sim.cfg }
func (sim *Simulation) Engine() *Engine   { return sim.engine }
func (sim *Simulation) Network() *Network { return sim.network }
func (sim *Simulation) NumNodes() int     { return len(sim.nodes) }

func (sim *Simulation) Node(i int) *Node { return sim.nodes[i] }
func (sim *Simulation) Peer(i int) *Peer { return sim.peers[i] }

// Attackers returns the ids of the withholding nodes in configuration order.
func (sim *Simulation) Attackers() []int {
	return append([]int(nil), sim.attackers...)
}

// Blocks returns every block node i stores, in insertion order.
func (sim *Simulation) Blocks(i int) []*Block {
	return sim.nodes[i].Chain().Blocks()
}

// Adjacency returns a copy of the gossip graph.
func (sim *Simulation) Adjacency() [][]bool {
	return sim.network.Topology.Adjacency()
}
