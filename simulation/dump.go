package simulation

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteLedger writes every block each node stores, in insertion order.
func (sim *Simulation) WriteLedger(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, node := range sim.nodes {
		fmt.Fprintf(bw, "Node %d Blockchain:\n", i)
		for _, b := range node.Chain().Blocks() {
			writeBlock(bw, b)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// WriteLedgerFile is WriteLedger into a newly created file.
func (sim *Simulation) WriteLedgerFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ledger %s: %w", path, err)
	}
	if err := sim.WriteLedger(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeBlock(w io.Writer, b *Block) {
	fmt.Fprintf(w, "Block ID: %v\n", b.Hash())
	if parent, ok := b.Parent(); ok {
		fmt.Fprintf(w, "Previous Block ID: %v\n", parent)
	} else {
		fmt.Fprintln(w, "Previous Block ID: None")
	}
	fmt.Fprintln(w, "Transactions:")
	for _, tx := range b.txs {
		fmt.Fprintln(w, tx)
	}
	fmt.Fprintln(w)
}
