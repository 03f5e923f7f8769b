package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txs(miner int, payments ...Transaction) []Transaction {
	return append(payments, NewCoinbase(miner, 50, 0))
}

func pay(sender, receiver int, amount int64) Transaction {
	return Transaction{Sender: sender, Receiver: receiver, Amount: amount}
}

func hashes(blocks []*Block) []Hash {
	out := make([]Hash, len(blocks))
	for i, b := range blocks {
		out[i] = b.Hash()
	}
	return out
}

func TestGenesis(t *testing.T) {
	bc := NewBlockchain(100)
	genesis := bc.Genesis()

	assert.True(t, genesis.IsGenesis())
	assert.Equal(t, GenesisHash, genesis.Hash())
	_, ok := genesis.Parent()
	assert.False(t, ok)
	assert.Equal(t, genesis, bc.Tip())
	assert.Equal(t, 0, bc.TipHeight())
	assert.Equal(t, []*Block{genesis}, bc.LongestChain())
}

func TestBlockHashIgnoresCoinbase(t *testing.T) {
	payments := []Transaction{pay(0, 1, 5), pay(1, 2, 7)}
	a := NewBlock(GenesisHash, txs(0, payments...), 0)
	b := NewBlock(GenesisHash, append(append([]Transaction(nil), payments...), NewCoinbase(3, 50, 9)), 3)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
	assert.False(t, a.IsGenesis())

	// Same content on another parent is a different block with the same id.
	c := NewBlock(a.Hash(), txs(0, payments...), 0)
	assert.Equal(t, a.Hash(), c.Hash())
	assert.False(t, a.Equal(c))

	d := NewBlock(GenesisHash, txs(0, pay(0, 1, 6), pay(1, 2, 7)), 0)
	assert.NotEqual(t, a.Hash(), d.Hash())
	assert.False(t, a.Equal(d))

	cb, ok := a.Coinbase()
	require.True(t, ok)
	assert.Equal(t, 0, cb.Receiver)
	assert.Equal(t, 3, a.NumTransactions())
}

func TestNewBlockCopiesTransactions(t *testing.T) {
	in := txs(0, pay(0, 1, 5))
	b := NewBlock(GenesisHash, in, 0)
	in[0].Amount = 99
	assert.Equal(t, int64(5), b.Transactions()[0].Amount)

	out := b.Transactions()
	out[0].Amount = 42
	assert.Equal(t, int64(5), b.Transactions()[0].Amount)
}

func TestLongestChain(t *testing.T) {
	bc := NewBlockchain(100)
	a1 := bc.CreateBlock(txs(0, pay(0, 1, 1)), 0)
	bc.AddBlock(a1)
	a2 := bc.CreateBlock(txs(0, pay(0, 1, 2)), 0)
	bc.AddBlock(a2)
	b1 := bc.CreateBlockOn(GenesisHash, txs(1, pay(1, 0, 3)), 1)
	bc.AddBlock(b1)

	chain := bc.LongestChain()
	assert.Equal(t, []Hash{GenesisHash, a1.Hash(), a2.Hash()}, hashes(chain))
	for i := 1; i < len(chain); i++ {
		parent, ok := chain[i].Parent()
		require.True(t, ok)
		assert.Equal(t, chain[i-1].Hash(), parent)
	}

	h, ok := bc.Height(b1.Hash())
	require.True(t, ok)
	assert.Equal(t, 1, h)

	side, err := bc.ChainTo(b1.Hash())
	require.NoError(t, err)
	assert.Equal(t, []Hash{GenesisHash, b1.Hash()}, hashes(side))

	assert.True(t, bc.IsAncestor(GenesisHash, a2.Hash()))
	assert.True(t, bc.IsAncestor(a1.Hash(), a2.Hash()))
	assert.True(t, bc.IsAncestor(a2.Hash(), a2.Hash()))
	assert.False(t, bc.IsAncestor(b1.Hash(), a2.Hash()))
	assert.False(t, bc.IsAncestor(a2.Hash(), a1.Hash()))
}

func TestTipTieBreakKeepsEarliest(t *testing.T) {
	bc := NewBlockchain(100)
	a := bc.CreateBlock(txs(0, pay(0, 1, 1)), 0)
	b := bc.CreateBlock(txs(1, pay(1, 0, 1)), 1)
	bc.AddBlock(a)
	bc.AddBlock(b)
	assert.Equal(t, a, bc.Tip())

	c := bc.CreateBlockOn(b.Hash(), txs(1, pay(1, 0, 2)), 1)
	bc.AddBlock(c)
	assert.Equal(t, c, bc.Tip())
}

func TestOrphansJoinWhenParentArrives(t *testing.T) {
	source := NewBlockchain(100)
	var blocks []*Block
	for i := 0; i < 4; i++ {
		b := source.CreateBlock(txs(0, pay(0, 1, int64(i+1))), 0)
		source.AddBlock(b)
		blocks = append(blocks, b)
	}

	bc := NewBlockchain(100)
	bc.AddBlock(blocks[3])
	bc.AddBlock(blocks[2])
	assert.Equal(t, 2, bc.Orphans())
	assert.Equal(t, bc.Genesis(), bc.Tip())

	_, err := bc.ChainTo(blocks[3].Hash())
	assert.ErrorIs(t, err, ErrOrphanBlock)
	_, err = bc.ChainTo(blocks[1].Hash())
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, ok := bc.Height(blocks[3].Hash())
	assert.False(t, ok)

	// The longest chain never contains orphans.
	for _, b := range bc.LongestChain() {
		assert.NotEqual(t, blocks[3].Hash(), b.Hash())
	}

	bc.AddBlock(blocks[0])
	assert.Equal(t, 2, bc.Orphans())
	assert.Equal(t, blocks[0], bc.Tip())

	bc.AddBlock(blocks[1])
	assert.Zero(t, bc.Orphans())
	assert.Equal(t, hashes(source.LongestChain()), hashes(bc.LongestChain()))
	assert.Equal(t, 5, bc.Len())
}

func TestRepeatedIDExtendsTip(t *testing.T) {
	bc := NewBlockchain(100)
	a := bc.CreateBlock(txs(0, pay(0, 1, 7)), 0)
	bc.AddBlock(a)
	b := bc.CreateBlock(txs(1, pay(1, 0, 3)), 1)
	bc.AddBlock(b)
	c := bc.CreateBlock(txs(0, pay(0, 1, 7)), 0)
	require.Equal(t, a.Hash(), c.Hash())
	bc.AddBlock(c)
	assert.Equal(t, c, bc.Tip())
	assert.Equal(t, 3, bc.TipHeight())

	d := bc.CreateBlock(txs(1, pay(1, 2, 4)), 1)
	bc.AddBlock(d)
	assert.Equal(t, d, bc.Tip())
	assert.Equal(t, 4, bc.TipHeight())
	assert.Equal(t, []*Block{bc.Genesis(), a, b, c, d}, bc.LongestChain())

	height, ok := bc.Height(c.Hash())
	require.True(t, ok)
	assert.Equal(t, 3, height)
	assert.Zero(t, bc.Orphans())
}

func TestRepeatedIDReleasesOrphans(t *testing.T) {
	source := NewBlockchain(100)
	a := source.CreateBlock(txs(0, pay(0, 1, 7)), 0)
	source.AddBlock(a)
	b := source.CreateBlock(txs(1, pay(1, 0, 3)), 1)
	source.AddBlock(b)
	c := source.CreateBlock(txs(0, pay(0, 1, 7)), 0)
	source.AddBlock(c)
	d := source.CreateBlock(txs(1, pay(1, 2, 4)), 1)
	source.AddBlock(d)
	e := source.CreateBlock(txs(2, pay(2, 0, 5)), 2)
	source.AddBlock(e)
	require.Equal(t, 5, source.TipHeight())

	// c and its descendants arrive first, so d waits for c rather than for
	// the older block under the same id.
	bc := NewBlockchain(100)
	bc.AddBlock(c)
	bc.AddBlock(d)
	bc.AddBlock(e)
	assert.Equal(t, 3, bc.Orphans())

	bc.AddBlock(a)
	assert.Equal(t, 3, bc.Orphans())
	assert.Equal(t, a, bc.Tip())

	bc.AddBlock(b)
	assert.Zero(t, bc.Orphans())
	assert.Equal(t, 5, bc.TipHeight())
	assert.Equal(t, hashes(source.LongestChain()), hashes(bc.LongestChain()))
	assert.Equal(t, e, bc.Tip())
}

func TestLongestChainIsMonotone(t *testing.T) {
	bc := NewBlockchain(100)
	prev := len(bc.LongestChain())
	parents := []Hash{GenesisHash}
	for i := 0; i < 30; i++ {
		parent := parents[(i*7)%len(parents)]
		b := bc.CreateBlockOn(parent, txs(i%3, pay(i%3, 1, int64(i+1))), i%3)
		bc.AddBlock(b)
		parents = append(parents, b.Hash())

		l := len(bc.LongestChain())
		assert.GreaterOrEqual(t, l, prev)
		prev = l
	}
}

func TestContainsAndConfirmed(t *testing.T) {
	bc := NewBlockchain(100)
	tx := pay(0, 1, 3)
	b := bc.CreateBlock(txs(0, tx), 0)
	assert.False(t, bc.Contains(b))
	assert.False(t, bc.Has(b.Hash()))
	assert.False(t, bc.Confirmed(tx))

	bc.AddBlock(b)
	assert.True(t, bc.Contains(b))
	assert.True(t, bc.Has(b.Hash()))
	assert.True(t, bc.Confirmed(tx))

	// Another miner's copy of the same block is a duplicate.
	assert.True(t, bc.Contains(NewBlock(GenesisHash, txs(2, tx), 2)))
}

func TestBalance(t *testing.T) {
	bc := NewBlockchain(100)
	a := bc.CreateBlock(txs(0, pay(0, 1, 30)), 0)
	bc.AddBlock(a)
	b := bc.CreateBlock(txs(1, pay(1, 2, 80)), 1)
	bc.AddBlock(b)
	fork := bc.CreateBlockOn(GenesisHash, txs(2, pay(2, 0, 10)), 2)
	bc.AddBlock(fork)

	assert.Equal(t, int64(100), bc.Balance(0, GenesisHash))
	// Sent 30, got the reward for a.
	assert.Equal(t, int64(120), bc.Balance(0, a.Hash()))
	assert.Equal(t, int64(130), bc.Balance(1, a.Hash()))
	assert.Equal(t, int64(100), bc.Balance(1, b.Hash()))
	assert.Equal(t, int64(180), bc.Balance(2, b.Hash()))

	// Balances follow the branch, not the tip.
	assert.Equal(t, int64(110), bc.Balance(0, fork.Hash()))
	assert.Equal(t, int64(140), bc.Balance(2, fork.Hash()))

	// Unknown blocks fall back to the tip.
	assert.Equal(t, bc.Balance(2, b.Hash()), bc.Balance(2, Hash{1}))
}
