package simulation

import "fmt"

// Action is the closed set of things an event can ask a peer to do.
type Action interface {
	isAction()
}

// GenerateTransaction makes the target peer create a transaction and
// schedule its next one.
type GenerateTransaction struct{}

// BroadcastTransaction sends a freshly generated transaction out of the
// target peer.
type BroadcastTransaction struct {
	Tx Transaction
}

type ReceiveTransaction struct {
	Tx   Transaction
	From int
}

// MineBlock completes a mining attempt. Attempts superseded by a later
// restart are ignored.
type MineBlock struct {
	Attempt uint64
}

// PropagateBlock relays a block from the target peer to its neighbors.
type PropagateBlock struct {
	Block *Block
}

type ReceiveBlock struct {
	Block *Block
	From  int
}

// RetryMine is the delayed re-mine after a node's chain changed. It only
// mines if Snapshot is still on the node's mining chain when it fires.
type RetryMine struct {
	Attempt  uint64
	Snapshot Hash
}

func (GenerateTransaction) isAction()  {}
func (BroadcastTransaction) isAction() {}
func (ReceiveTransaction) isAction()   {}
func (MineBlock) isAction()            {}
func (PropagateBlock) isAction()       {}
func (ReceiveBlock) isAction()         {}
func (RetryMine) isAction()            {}

// Event is an action scheduled for a peer at a simulated time.
type Event struct {
	Time   float64
	Target int
	Action Action

	seq uint64
}

func (e Event) String() string {
	return fmt.Sprintf("{ Time: %.3f, Target: %d, Action: %T }", e.Time, e.Target, e.Action)
}
