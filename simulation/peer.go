package simulation

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const seenCacheSize = 8192

type PeerConfig struct {
	NumNodes  int
	TxMeanGap float64
	MaxAmount int64
	// Gossip makes peers re-relay transactions they see for the first time.
	// Otherwise transactions only reach the originator's direct neighbors.
	Gossip bool
}

// Peer connects a node to the gossip graph. It generates the node's
// transactions and relays blocks and transactions along graph edges.
type Peer struct {
	node      *Node
	neighbors []int
	seen      *lru.Cache[Transaction, struct{}]
	cfg       PeerConfig
}

func NewPeer(node *Node, neighbors []int, cfg PeerConfig) *Peer {
	seen, _ := lru.New[Transaction, struct{}](seenCacheSize)
	return &Peer{
		node:      node,
		neighbors: neighbors,
		seen:      seen,
		cfg:       cfg,
	}
}

func (p *Peer) Node() *Node {
	return p.node
}

func (p *Peer) ID() int {
	return p.node.ID()
}

func (p *Peer) Neighbors() []int {
	return p.neighbors
}

// GenerateTransaction pays a random amount to a random other node and
// schedules the next generation after an exponential gap.
func (p *Peer) GenerateTransaction(ctx *Context) {
	if p.cfg.NumNodes > 1 {
		receiver := ctx.RNG.Intn(p.cfg.NumNodes - 1)
		if receiver >= p.ID() {
			receiver++
		}
		tx := Transaction{
			Sender:    p.ID(),
			Receiver:  receiver,
			Amount:    1 + ctx.RNG.Int63n(p.cfg.MaxAmount),
			Timestamp: ctx.Now,
		}
		ctx.schedule(ctx.Now, p.ID(), BroadcastTransaction{Tx: tx})
	}
	next := ctx.Now + ctx.RNG.ExpFloat64()*p.cfg.TxMeanGap
	ctx.schedule(next, p.ID(), GenerateTransaction{})
}

// BroadcastTransaction hands tx to the local node and sends it to every
// neighbor.
func (p *Peer) BroadcastTransaction(ctx *Context, tx Transaction) {
	p.seen.Add(tx, struct{}{})
	p.node.ReceiveTransaction(ctx, tx)
	p.relayTransaction(ctx, tx, -1)
}

func (p *Peer) ReceiveTransaction(ctx *Context, tx Transaction, from int) {
	if p.seen.Contains(tx) {
		return
	}
	p.seen.Add(tx, struct{}{})
	p.node.ReceiveTransaction(ctx, tx)
	if p.cfg.Gossip {
		p.relayTransaction(ctx, tx, from)
	}
}

func (p *Peer) relayTransaction(ctx *Context, tx Transaction, from int) {
	for _, nb := range p.neighbors {
		if nb == from {
			continue
		}
		at := ctx.Now + ctx.Network.Latency.Latency(p.ID(), nb, 1)
		ctx.schedule(at, nb, ReceiveTransaction{Tx: tx, From: p.ID()})
	}
}

// PropagateBlock sends b to every neighbor. The delay grows with the number
// of transactions in the block.
func (p *Peer) PropagateBlock(ctx *Context, b *Block) {
	for _, nb := range p.neighbors {
		at := ctx.Now + ctx.Network.Latency.Latency(p.ID(), nb, b.NumTransactions())
		ctx.schedule(at, nb, ReceiveBlock{Block: b, From: p.ID()})
	}
}

func (p *Peer) ReceiveBlock(ctx *Context, b *Block) bool {
	return p.node.ReceiveBlock(ctx, b)
}
