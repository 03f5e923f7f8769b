package simulation

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"lukechampine.com/blake3"
)

const HashLength = 32

// balanceCacheSize bounds the number of (block, account) balances a single
// chain remembers.
const balanceCacheSize = 4096

type Hash [HashLength]byte

// GenesisHash is the id of the genesis block every chain starts from.
var GenesisHash = Hash{}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}

	copy(h[HashLength-len(b):], b)
}

func (h Hash) String() string {
	enc := make([]byte, len(h[:])*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], h[:])
	return string(enc)
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

type Block struct {
	hash       Hash
	parentHash Hash
	txs        []Transaction
	miner      int
}

func GenesisBlock() *Block {
	return &Block{
		hash:  GenesisHash,
		miner: CoinbaseSender,
	}
}

// NewBlock assembles a block on top of parent. The caller appends the
// coinbase as the last transaction; it does not take part in the block id.
func NewBlock(parent Hash, txs []Transaction, miner int) *Block {
	cpy := make([]Transaction, len(txs))
	copy(cpy, txs)
	return &Block{
		hash:       contentHash(cpy),
		parentHash: parent,
		txs:        cpy,
		miner:      miner,
	}
}

// contentHash hashes sender, receiver and amount of every transaction except
// the trailing coinbase, so independently mined blocks over the same
// transactions share an id.
func contentHash(txs []Transaction) (hash Hash) {
	if len(txs) == 0 {
		sum := blake3.Sum256(nil)
		hash.SetBytes(sum[:])
		return hash
	}
	buf := make([]byte, 0, 24*(len(txs)-1))
	for _, tx := range txs[:len(txs)-1] {
		buf = binary.BigEndian.AppendUint64(buf, uint64(int64(tx.Sender)))
		buf = binary.BigEndian.AppendUint64(buf, uint64(int64(tx.Receiver)))
		buf = binary.BigEndian.AppendUint64(buf, uint64(tx.Amount))
	}
	sum := blake3.Sum256(buf)
	hash.SetBytes(sum[:])
	return hash
}

func (b *Block) Hash() Hash {
	return b.hash
}

// Parent returns the parent id. ok is false only for the genesis block.
func (b *Block) Parent() (parent Hash, ok bool) {
	if b.IsGenesis() {
		return Hash{}, false
	}
	return b.parentHash, true
}

func (b *Block) ParentHash() Hash {
	return b.parentHash
}

func (b *Block) IsGenesis() bool {
	return b.hash == GenesisHash
}

// Transactions returns a copy of the block's transactions, coinbase last.
func (b *Block) Transactions() []Transaction {
	cpy := make([]Transaction, len(b.txs))
	copy(cpy, b.txs)
	return cpy
}

func (b *Block) NumTransactions() int {
	return len(b.txs)
}

// Coinbase returns the reward transaction of a mined block.
func (b *Block) Coinbase() (Transaction, bool) {
	if len(b.txs) == 0 {
		return Transaction{}, false
	}
	tx := b.txs[len(b.txs)-1]
	return tx, tx.IsCoinbase()
}

func (b *Block) Miner() int {
	return b.miner
}

// Equal reports whether b and other carry the same content on the same
// parent. The miner and the coinbase are ignored.
func (b *Block) Equal(other *Block) bool {
	if b == other {
		return true
	}
	if other == nil || b.hash != other.hash || b.parentHash != other.parentHash {
		return false
	}
	if len(b.txs) != len(other.txs) {
		return false
	}
	for i := 0; i+1 < len(b.txs); i++ {
		if b.txs[i] != other.txs[i] {
			return false
		}
	}
	return true
}

func (b *Block) String() string {
	return fmt.Sprintf("{ Hash: %v, ParentHash: %v, Miner: %v, Txs: %v}", b.hash, b.parentHash, b.miner, len(b.txs))
}

type balanceKey struct {
	handle  int
	account int
}

// Blockchain is one node's replica of the block tree. Blocks live in an
// arena addressed by insertion index; index 0 is always genesis.
type Blockchain struct {
	blocks  []*Block
	parent  []int // -1 while unresolved
	height  []int // -1 while the block is not connected to genesis
	byHash  map[Hash][]int
	waiting map[Hash][]int // orphans keyed by the parent they wait for
	orphans int
	tip     int

	confirmed      map[Transaction]struct{}
	initialBalance int64
	balances       *lru.Cache[balanceKey, int64]
}

func NewBlockchain(initialBalance int64) *Blockchain {
	balances, _ := lru.New[balanceKey, int64](balanceCacheSize)
	genesis := GenesisBlock()
	return &Blockchain{
		blocks:         []*Block{genesis},
		parent:         []int{-1},
		height:         []int{0},
		byHash:         map[Hash][]int{genesis.Hash(): {0}},
		waiting:        make(map[Hash][]int),
		confirmed:      make(map[Transaction]struct{}),
		initialBalance: initialBalance,
		balances:       balances,
	}
}

func (bc *Blockchain) Genesis() *Block {
	return bc.blocks[0]
}

// CreateBlock assembles a block on the current tip without storing it.
func (bc *Blockchain) CreateBlock(txs []Transaction, miner int) *Block {
	return NewBlock(bc.Tip().Hash(), txs, miner)
}

// CreateBlockOn is CreateBlock with an explicit parent.
func (bc *Blockchain) CreateBlockOn(parent Hash, txs []Transaction, miner int) *Block {
	return NewBlock(parent, txs, miner)
}

// AddBlock stores b. No validation happens here. A block whose parent is
// unknown is kept as an orphan and joins the tree once the parent arrives.
func (bc *Blockchain) AddBlock(b *Block) {
	handle := len(bc.blocks)
	bc.blocks = append(bc.blocks, b)
	bc.parent = append(bc.parent, -1)
	bc.height = append(bc.height, -1)
	bc.byHash[b.Hash()] = append(bc.byHash[b.Hash()], handle)
	for _, tx := range b.txs {
		bc.confirmed[tx] = struct{}{}
	}

	if p, ok := bc.lookup(b.ParentHash()); ok {
		bc.parent[handle] = p
		if bc.height[p] >= 0 {
			bc.connect(handle)
			return
		}
	}
	bc.waiting[b.ParentHash()] = append(bc.waiting[b.ParentHash()], handle)
	bc.orphans++
}

// connect assigns heights to handle and every orphan hanging below it.
func (bc *Blockchain) connect(handle int) {
	stack := []int{handle}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bc.height[h] = bc.height[bc.parent[h]] + 1
		if bc.height[h] > bc.height[bc.tip] || (bc.height[h] == bc.height[bc.tip] && h < bc.tip) {
			bc.tip = h
		}

		// Orphans that already picked another block under this id keep
		// waiting for it.
		hash := bc.blocks[h].Hash()
		var pending []int
		for _, c := range bc.waiting[hash] {
			if p := bc.parent[c]; p >= 0 && p != h {
				pending = append(pending, c)
				continue
			}
			bc.orphans--
			bc.parent[c] = h
			stack = append(stack, c)
		}
		if len(pending) > 0 {
			bc.waiting[hash] = pending
		} else {
			delete(bc.waiting, hash)
		}
	}
}

// lookup resolves an id to a stored block. Ids repeat when blocks carry the
// same transactions, in which case the connected block furthest from genesis
// wins and ties go to the earliest stored.
func (bc *Blockchain) lookup(hash Hash) (int, bool) {
	handles, ok := bc.byHash[hash]
	if !ok {
		return 0, false
	}
	best := handles[0]
	for _, h := range handles[1:] {
		if bc.height[h] > bc.height[best] {
			best = h
		}
	}
	return best, true
}

// Tip returns the last block of the longest chain.
func (bc *Blockchain) Tip() *Block {
	return bc.blocks[bc.tip]
}

func (bc *Blockchain) TipHeight() int {
	return bc.height[bc.tip]
}

// Height returns the distance of hash from genesis. ok is false for unknown
// blocks and for orphans.
func (bc *Blockchain) Height(hash Hash) (int, bool) {
	h, ok := bc.lookup(hash)
	if !ok || bc.height[h] < 0 {
		return 0, false
	}
	return bc.height[h], true
}

// LongestChain returns the canonical chain, genesis first.
func (bc *Blockchain) LongestChain() []*Block {
	return bc.chainFrom(bc.tip)
}

// ChainTo returns the chain from genesis to the block with the given id.
func (bc *Blockchain) ChainTo(hash Hash) ([]*Block, error) {
	h, ok := bc.lookup(hash)
	if !ok {
		return nil, fmt.Errorf("block %v: %w", hash, ErrUnknownBlock)
	}
	if bc.height[h] < 0 {
		return nil, fmt.Errorf("block %v: %w", hash, ErrOrphanBlock)
	}
	return bc.chainFrom(h), nil
}

func (bc *Blockchain) chainFrom(h int) []*Block {
	chain := make([]*Block, bc.height[h]+1)
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i] = bc.blocks[h]
		h = bc.parent[h]
	}
	return chain
}

// IsAncestor reports whether ancestor lies on the chain ending at descendant.
// A block is its own ancestor.
func (bc *Blockchain) IsAncestor(ancestor, descendant Hash) bool {
	a, ok := bc.lookup(ancestor)
	if !ok || bc.height[a] < 0 {
		return false
	}
	d, ok := bc.lookup(descendant)
	if !ok || bc.height[d] < 0 {
		return false
	}
	for bc.height[d] > bc.height[a] {
		d = bc.parent[d]
	}
	return d == a
}

// Has reports whether a block with the given id is stored.
func (bc *Blockchain) Has(hash Hash) bool {
	_, ok := bc.byHash[hash]
	return ok
}

// Contains reports whether an equal block is already stored.
func (bc *Blockchain) Contains(b *Block) bool {
	for _, h := range bc.byHash[b.Hash()] {
		if bc.blocks[h].Equal(b) {
			return true
		}
	}
	return false
}

// Confirmed reports whether tx is included in any stored block.
func (bc *Blockchain) Confirmed(tx Transaction) bool {
	_, ok := bc.confirmed[tx]
	return ok
}

// Balance replays the chain ending at the given block and returns the coins
// held by account. Unknown or orphaned blocks fall back to the tip.
func (bc *Blockchain) Balance(account int, at Hash) int64 {
	h, ok := bc.lookup(at)
	if !ok || bc.height[h] < 0 {
		h = bc.tip
	}
	return bc.balanceAt(account, h)
}

func (bc *Blockchain) balanceAt(account int, handle int) int64 {
	key := balanceKey{handle: handle, account: account}
	if balance, ok := bc.balances.Get(key); ok {
		return balance
	}
	var balance int64
	if handle == 0 {
		balance = bc.initialBalance
	} else {
		balance = bc.balanceAt(account, bc.parent[handle])
		for _, tx := range bc.blocks[handle].txs {
			if tx.Sender == account {
				balance -= tx.Amount
			}
			if tx.Receiver == account {
				balance += tx.Amount
			}
		}
	}
	bc.balances.Add(key, balance)
	return balance
}

// Blocks returns every stored block in insertion order, genesis first.
func (bc *Blockchain) Blocks() []*Block {
	cpy := make([]*Block, len(bc.blocks))
	copy(cpy, bc.blocks)
	return cpy
}

// Orphans returns the number of stored blocks not connected to genesis.
func (bc *Blockchain) Orphans() int {
	return bc.orphans
}

func (bc *Blockchain) Len() int {
	return len(bc.blocks)
}
