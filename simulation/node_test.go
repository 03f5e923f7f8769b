package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestContext returns a context over an empty queue. Nodes are not
// connected to a network, so handlers that need latencies must not run.
func newTestContext(n int, blockInterval float64) *Context {
	rng := rand.New(rand.NewSource(42))
	return &Context{
		Queue:  NewEventQueue(),
		Engine: NewEngine(rng, blockInterval, make([]bool, n)),
		RNG:    rng,
	}
}

func newTestNode(id int, minPool int, initialBalance int64) *Node {
	return NewNode(id, NodeConfig{
		Strategy:       Honest,
		HashPower:      0.5,
		MinPoolSize:    minPool,
		BlockReward:    50,
		InitialBalance: initialBalance,
	})
}

// drain pops every queued event and returns the actions.
func drain(t *testing.T, ctx *Context) []Action {
	t.Helper()
	var actions []Action
	for !ctx.Queue.Empty() {
		ev, err := ctx.Queue.Pop()
		require.NoError(t, err)
		actions = append(actions, ev.Action)
	}
	return actions
}

func TestNodeMinesOncePoolIsFull(t *testing.T) {
	ctx := newTestContext(2, 0)
	node := newTestNode(0, 2, 1000)

	assert.True(t, node.ReceiveTransaction(ctx, pay(1, 0, 5)))
	assert.False(t, node.Mining())
	assert.True(t, ctx.Queue.Empty())

	// Duplicates are ignored.
	assert.False(t, node.ReceiveTransaction(ctx, pay(1, 0, 5)))
	assert.True(t, node.ReceiveTransaction(ctx, pay(1, 0, 6)))
	require.True(t, node.Mining())

	ev, err := ctx.Queue.Pop()
	require.NoError(t, err)
	// Immediate mode mines one time unit later.
	assert.Equal(t, 1.0, ev.Time)
	mine, ok := ev.Action.(MineBlock)
	require.True(t, ok)

	ctx.Now = ev.Time
	b := node.Mine(ctx, mine.Attempt)
	require.NotNil(t, b)
	assert.False(t, node.Mining())
	assert.Empty(t, node.Pool())
	assert.Equal(t, 1, node.Mined())
	assert.Equal(t, b, node.Chain().Tip())
	assert.Equal(t, GenesisHash, b.ParentHash())

	cb, ok := b.Coinbase()
	require.True(t, ok)
	assert.Equal(t, NewCoinbase(0, 50, 1), cb)
	assert.Equal(t, 3, b.NumTransactions())

	assert.Equal(t, []Action{PropagateBlock{Block: b}}, drain(t, ctx))

	// Confirmed transactions do not come back into the pool.
	assert.False(t, node.ReceiveTransaction(ctx, pay(1, 0, 5)))
}

func TestNodeIgnoresStaleAttempts(t *testing.T) {
	ctx := newTestContext(2, 0)
	node := newTestNode(0, 1, 1000)
	node.ReceiveTransaction(ctx, pay(1, 0, 5))
	actions := drain(t, ctx)
	require.Len(t, actions, 1)
	first := actions[0].(MineBlock)

	node.Restart(ctx)
	actions = drain(t, ctx)
	require.Len(t, actions, 1)
	retry := actions[0].(RetryMine)
	assert.Equal(t, GenesisHash, retry.Snapshot)

	assert.Nil(t, node.Mine(ctx, first.Attempt))
	assert.Len(t, node.Pool(), 1)

	b := node.RetryMine(ctx, retry)
	require.NotNil(t, b)
	assert.Equal(t, b, node.Chain().Tip())
}

func TestRetryMineNeedsSnapshotOnChain(t *testing.T) {
	ctx := newTestContext(2, 0)
	node := newTestNode(0, 1, 1000)

	other := NewBlockchain(1000)
	side := other.CreateBlock(txs(1, pay(1, 0, 9)), 1)

	node.ReceiveTransaction(ctx, pay(1, 0, 5))
	drain(t, ctx)
	node.Restart(ctx)
	drain(t, ctx)

	// A snapshot that is not on the node's chain does not mine.
	stale := RetryMine{Attempt: node.attempt, Snapshot: side.Hash()}
	assert.Nil(t, node.RetryMine(ctx, stale))
	assert.False(t, node.Mining())
	assert.Len(t, node.Pool(), 1)
}

func TestNodeRejectsUnaffordableTransaction(t *testing.T) {
	ctx := newTestContext(2, 0)
	node := newTestNode(0, 5, 10)

	miner := NewBlockchain(10)
	bad := miner.CreateBlock(txs(1, pay(1, 0, 11)), 1)
	assert.False(t, node.ValidateBlock(bad))
	assert.False(t, node.ReceiveBlock(ctx, bad))
	assert.Equal(t, 1, node.Chain().Len())
	assert.Equal(t, node.Chain().Genesis(), node.Chain().Tip())
	assert.True(t, ctx.Queue.Empty())

	good := miner.CreateBlock(txs(1, pay(1, 0, 10)), 1)
	assert.True(t, node.ReceiveBlock(ctx, good))
	assert.Equal(t, good, node.Chain().Tip())
	assert.Equal(t, 2, node.BlocksReceived())
}

func TestNodeReceiveBlock(t *testing.T) {
	ctx := newTestContext(2, 0)
	node := newTestNode(0, 5, 1000)
	included := pay(1, 0, 5)
	pending := pay(1, 0, 6)
	node.ReceiveTransaction(ctx, included)
	node.ReceiveTransaction(ctx, pending)

	b := NewBlock(GenesisHash, []Transaction{included, NewCoinbase(1, 50, 2)}, 1)
	ctx.Now = 12
	require.True(t, node.ReceiveBlock(ctx, b))
	assert.Equal(t, []Transaction{pending}, node.Pool())
	assert.Equal(t, b, node.Chain().Tip())
	assert.Equal(t, 10.0, node.AverageLatency())
	assert.Equal(t, []Action{PropagateBlock{Block: b}}, drain(t, ctx))

	// The same block again, from anyone, is a duplicate.
	dup := NewBlock(GenesisHash, []Transaction{included, NewCoinbase(1, 50, 2)}, 1)
	assert.False(t, node.ReceiveBlock(ctx, dup))
	assert.True(t, ctx.Queue.Empty())
	assert.Equal(t, 2, node.Chain().Len())
}

func TestPowModeScalesWithHashPower(t *testing.T) {
	ctx := newTestContext(2, 100)
	strong := newTestNode(0, 1, 1000)
	strong.hashPower = 0.9
	weak := newTestNode(1, 1, 1000)
	weak.hashPower = 0.1

	var strongSum, weakSum float64
	for i := 0; i < 2000; i++ {
		strongSum += ctx.Engine.SolveDelay(strong)
		weakSum += ctx.Engine.SolveDelay(weak)
	}
	assert.InDelta(t, 100/0.9, strongSum/2000, 15)
	assert.InDelta(t, 100/0.1, weakSum/2000, 150)

	idle := newTestNode(2, 1, 1000)
	idle.hashPower = 0
	idle.ReceiveTransaction(ctx, pay(1, 2, 1))
	assert.False(t, idle.Mining())
	assert.True(t, ctx.Queue.Empty())
}
