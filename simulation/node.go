package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/dominant-strategies/go-quai/event"

	"github.com/shreekarashastry/powsim/log"
)

type Strategy uint8

const (
	Honest Strategy = iota
	Selfish
	Stubborn
)

func (s Strategy) String() string {
	switch s {
	case Honest:
		return "honest"
	case Selfish:
		return "selfish"
	case Stubborn:
		return "stubborn"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Withholds reports whether nodes of this strategy keep a private chain.
func (s Strategy) Withholds() bool {
	return s == Selfish || s == Stubborn
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "honest":
		return Honest, nil
	case "selfish":
		return Selfish, nil
	case "stubborn":
		return Stubborn, nil
	}
	return Honest, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, name)
}

// Network bundles the gossip graph with the link latencies.
type Network struct {
	Topology *Topology
	Latency  *LatencyModel
}

// Context is everything an event handler may use besides its own node.
type Context struct {
	Now     float64
	Queue   *EventQueue
	Network *Network
	Engine  *Engine
	RNG     *rand.Rand

	publishFeed *event.Feed
}

func (ctx *Context) schedule(at float64, target int, action Action) {
	ctx.Queue.Push(Event{Time: at, Target: target, Action: action})
}

func (ctx *Context) notifyPublish(ev PublishEvent) {
	if ctx.publishFeed != nil {
		ctx.publishFeed.Send(ev)
	}
}

type NodeConfig struct {
	FastNetwork    bool
	FastCPU        bool
	Strategy       Strategy
	Policy         Policy
	HashPower      float64
	MinPoolSize    int
	BlockReward    int64
	InitialBalance int64
}

// Node is a miner with its own replica of the chain and transaction pool.
// Withholding strategies additionally keep a private chain and mine on the
// cursor instead of the public tip.
type Node struct {
	id          int
	fastNetwork bool
	fastCPU     bool
	strategy    Strategy
	policy      Policy
	hashPower   float64
	minPoolSize int
	reward      int64

	chain  *Blockchain
	pool   []Transaction
	pooled map[Transaction]struct{}

	private []*Block
	cursor  Hash
	racing  bool

	mining  bool
	attempt uint64

	blocksReceived int
	latencySum     float64
	mined          int
}

func NewNode(id int, cfg NodeConfig) *Node {
	policy := cfg.Policy
	if policy == nil && cfg.Strategy.Withholds() {
		policy = SelfishPolicy()
	}
	return &Node{
		id:          id,
		fastNetwork: cfg.FastNetwork,
		fastCPU:     cfg.FastCPU,
		strategy:    cfg.Strategy,
		policy:      policy,
		hashPower:   cfg.HashPower,
		minPoolSize: cfg.MinPoolSize,
		reward:      cfg.BlockReward,
		chain:       NewBlockchain(cfg.InitialBalance),
		pooled:      make(map[Transaction]struct{}),
		cursor:      GenesisHash,
	}
}

func (n *Node) ID() int             { return n.id }
func (n *Node) FastNetwork() bool   { return n.fastNetwork }
func (n *Node) FastCPU() bool       { return n.fastCPU }
func (n *Node) Strategy() Strategy  { return n.strategy }
func (n *Node) HashPower() float64  { return n.hashPower }
func (n *Node) Chain() *Blockchain  { return n.chain }
func (n *Node) Mined() int          { return n.mined }
func (n *Node) Cursor() Hash        { return n.cursor }
func (n *Node) Mining() bool        { return n.mining }
func (n *Node) BlocksReceived() int { return n.blocksReceived }
func (n *Node) Pool() []Transaction { return append([]Transaction(nil), n.pool...) }
func (n *Node) Private() []*Block   { return append([]*Block(nil), n.private...) }

// AverageLatency is the running mean of block arrival latency.
func (n *Node) AverageLatency() float64 {
	if n.blocksReceived == 0 {
		return 0
	}
	return n.latencySum / float64(n.blocksReceived)
}

// MiningTip is the block the node builds its next block on.
func (n *Node) MiningTip() Hash {
	if n.strategy.Withholds() {
		return n.cursor
	}
	return n.chain.Tip().Hash()
}

// MiningChain is the chain the node would offer the network: the public
// chain up to the mining tip followed by any withheld blocks.
func (n *Node) MiningChain() []*Block {
	if !n.strategy.Withholds() {
		return n.chain.LongestChain()
	}
	base := n.cursor
	if len(n.private) > 0 {
		base = n.private[0].ParentHash()
	}
	chain, err := n.chain.ChainTo(base)
	if err != nil {
		return n.chain.LongestChain()
	}
	return append(chain, n.private...)
}

// ReceiveTransaction adds tx to the pool unless it is already known and
// starts mining once the pool is large enough.
func (n *Node) ReceiveTransaction(ctx *Context, tx Transaction) bool {
	if n.chain.Confirmed(tx) {
		return false
	}
	if _, ok := n.pooled[tx]; ok {
		return false
	}
	n.pool = append(n.pool, tx)
	n.pooled[tx] = struct{}{}

	if !n.mining && len(n.pool) >= n.minPoolSize {
		n.startMining(ctx)
	}
	return true
}

func (n *Node) startMining(ctx *Context) {
	delay := ctx.Engine.SolveDelay(n)
	if math.IsInf(delay, 1) {
		return
	}
	n.attempt++
	n.mining = true
	ctx.schedule(ctx.Now+delay, n.id, MineBlock{Attempt: n.attempt})
}

// Restart abandons the attempt in flight and schedules a re-mine on the
// current mining tip.
func (n *Node) Restart(ctx *Context) {
	n.attempt++
	n.mining = false
	delay := ctx.Engine.RetryDelay(n)
	if math.IsInf(delay, 1) {
		return
	}
	n.mining = true
	ctx.schedule(ctx.Now+delay, n.id, RetryMine{Attempt: n.attempt, Snapshot: n.MiningTip()})
}

// Mine completes a mining attempt. It returns nil for superseded attempts
// and when the pool fell below the minimum in the meantime.
func (n *Node) Mine(ctx *Context, attempt uint64) *Block {
	if attempt != n.attempt {
		return nil
	}
	n.mining = false
	return n.mine(ctx)
}

// RetryMine mines only if the chain the re-mine was scheduled for is still
// part of the node's mining chain.
func (n *Node) RetryMine(ctx *Context, a RetryMine) *Block {
	if a.Attempt != n.attempt {
		return nil
	}
	n.mining = false
	if !n.extends(a.Snapshot) {
		return nil
	}
	return n.mine(ctx)
}

func (n *Node) mine(ctx *Context) *Block {
	if len(n.pool) == 0 || len(n.pool) < n.minPoolSize {
		return nil
	}
	txs := make([]Transaction, 0, len(n.pool)+1)
	txs = append(txs, n.pool...)
	txs = append(txs, NewCoinbase(n.id, n.reward, ctx.Now))
	n.pool = nil
	n.pooled = make(map[Transaction]struct{})
	n.mined++

	if n.strategy.Withholds() {
		lead := n.lead()
		b := n.chain.CreateBlockOn(n.cursor, txs, n.id)
		n.private = append(n.private, b)
		n.cursor = b.Hash()
		log.Global.WithFields(log.Fields{
			"node":     n.id,
			"block":    b.Hash(),
			"withheld": len(n.private),
			"time":     ctx.Now,
		}).Debug("Mined a private block")
		n.decide(ctx, TriggerMined, lead, n.lead())
		return b
	}

	b := n.chain.CreateBlock(txs, n.id)
	n.chain.AddBlock(b)
	log.Global.WithFields(log.Fields{
		"node":   n.id,
		"block":  b.Hash(),
		"height": n.chain.TipHeight(),
		"time":   ctx.Now,
	}).Debug("Mined a new block")
	ctx.schedule(ctx.Now, n.id, PropagateBlock{Block: b})
	return b
}

// ReceiveBlock validates a block from a peer and adds it to the local chain.
// It returns false for invalid and duplicate blocks.
func (n *Node) ReceiveBlock(ctx *Context, b *Block) bool {
	n.recordArrival(ctx.Now, b)
	if !n.ValidateBlock(b) {
		log.Global.WithFields(log.Fields{
			"node":  n.id,
			"block": b.Hash(),
			"miner": b.Miner(),
		}).Debug("Rejected block with insufficient sender balance")
		return false
	}
	if n.chain.Contains(b) {
		return false
	}
	n.prunePool(b)

	if !n.strategy.Withholds() {
		n.chain.AddBlock(b)
		ctx.schedule(ctx.Now, n.id, PropagateBlock{Block: b})
		return true
	}

	lead := n.lead()
	n.chain.AddBlock(b)
	n.decide(ctx, TriggerReceived, lead, n.lead())
	return true
}

// ValidateBlock checks that every sender can afford its transaction on the
// chain the block extends.
func (n *Node) ValidateBlock(b *Block) bool {
	for _, tx := range b.txs {
		if tx.IsCoinbase() {
			continue
		}
		if n.chain.Balance(tx.Sender, b.ParentHash()) < tx.Amount {
			return false
		}
	}
	return true
}

func (n *Node) recordArrival(now float64, b *Block) {
	latency := 0.0
	if cb, ok := b.Coinbase(); ok && now > cb.Timestamp {
		latency = now - cb.Timestamp
	}
	n.blocksReceived++
	n.latencySum += latency
}

func (n *Node) prunePool(b *Block) {
	if len(n.pool) == 0 {
		return
	}
	included := make(map[Transaction]struct{}, len(b.txs))
	for _, tx := range b.txs {
		included[tx] = struct{}{}
	}
	kept := n.pool[:0]
	for _, tx := range n.pool {
		if _, ok := included[tx]; ok {
			delete(n.pooled, tx)
			continue
		}
		kept = append(kept, tx)
	}
	n.pool = kept
}

// extends reports whether snapshot lies on the chain ending at the mining tip.
// The snapshot may be the mining tip itself.
func (n *Node) extends(snapshot Hash) bool {
	for i := len(n.private) - 1; i >= 0; i-- {
		if n.private[i].Hash() == snapshot {
			return true
		}
	}
	base := n.MiningTip()
	if len(n.private) > 0 {
		base = n.private[0].ParentHash()
	}
	return n.chain.IsAncestor(snapshot, base)
}

func (n *Node) privateHeight() int {
	if len(n.private) == 0 {
		h, ok := n.chain.Height(n.cursor)
		if !ok {
			return n.chain.TipHeight()
		}
		return h
	}
	base, _ := n.chain.Height(n.private[0].ParentHash())
	return base + len(n.private)
}

// lead is the attacker's block advantage over its public view.
func (n *Node) lead() int {
	return n.privateHeight() - n.chain.TipHeight()
}

// match is the number of withheld blocks that levels the published branch
// with the public tip.
func (n *Node) match() int {
	if len(n.private) == 0 {
		return 0
	}
	base, _ := n.chain.Height(n.private[0].ParentHash())
	k := n.chain.TipHeight() - base
	if k < 0 {
		return 0
	}
	if k > len(n.private) {
		return len(n.private)
	}
	return k
}

func (n *Node) decide(ctx *Context, trigger Trigger, lead, leadNew int) {
	d := n.policy(RaceState{
		Trigger:  trigger,
		Lead:     lead,
		LeadNew:  leadNew,
		Withheld: len(n.private),
		Match:    n.match(),
		Racing:   n.racing,
	})
	switch d.Action {
	case Abandon:
		n.abandon()
	case Publish:
		n.publish(ctx, d.Count)
	}
}

func (n *Node) abandon() {
	if len(n.private) > 0 {
		log.Global.WithFields(log.Fields{
			"node":      n.id,
			"abandoned": len(n.private),
		}).Debug("Abandoned private chain")
	}
	n.private = nil
	n.cursor = n.chain.Tip().Hash()
	n.racing = false
}

// publish reveals the count oldest withheld blocks.
func (n *Node) publish(ctx *Context, count int) []*Block {
	if count > len(n.private) {
		count = len(n.private)
	}
	if count <= 0 {
		return nil
	}
	published := n.private[:count]
	n.private = append([]*Block(nil), n.private[count:]...)
	for _, b := range published {
		n.chain.AddBlock(b)
		ctx.schedule(ctx.Now, n.id, PropagateBlock{Block: b})
	}

	if len(n.private) > 0 {
		n.cursor = n.private[len(n.private)-1].Hash()
	} else {
		n.cursor = published[len(published)-1].Hash()
	}
	h, _ := n.chain.Height(n.cursor)
	n.racing = len(n.private) == 0 && h == n.chain.TipHeight() && n.chain.Tip().Hash() != n.cursor

	log.Global.WithFields(log.Fields{
		"node":      n.id,
		"published": len(published),
		"withheld":  len(n.private),
		"racing":    n.racing,
		"time":      ctx.Now,
	}).Debug("Published private blocks")
	ctx.notifyPublish(PublishEvent{Node: n.id, Blocks: published, Time: ctx.Now})
	return published
}
