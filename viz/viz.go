package viz

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/shreekarashastry/powsim/simulation"
)

// WriteChainCSV exports a block tree as <path>.nodes.csv and
// <path>.edges.csv for graph tools such as Gephi.
func WriteChainCSV(path string, blocks []*simulation.Block) error {
	if err := writeCSV(path+".nodes.csv", chainNodes(blocks)); err != nil {
		return err
	}
	return writeCSV(path+".edges.csv", chainEdges(blocks))
}

// WriteTopologyCSV exports the gossip graph the same way.
func WriteTopologyCSV(path string, adjacency [][]bool) error {
	nodes := [][]string{{"ID", "Label", "Degree"}}
	edges := [][]string{{"Source", "Target", "Type"}}
	for i, row := range adjacency {
		degree := 0
		for j, connected := range row {
			if !connected {
				continue
			}
			degree++
			// Undirected, one row per edge.
			if i < j {
				edges = append(edges, []string{strconv.Itoa(i), strconv.Itoa(j), "Undirected"})
			}
		}
		id := strconv.Itoa(i)
		nodes = append(nodes, []string{id, id, strconv.Itoa(degree)})
	}
	if err := writeCSV(path+".nodes.csv", nodes); err != nil {
		return err
	}
	return writeCSV(path+".edges.csv", edges)
}

func chainNodes(blocks []*simulation.Block) [][]string {
	rows := [][]string{{"ID", "Label", "Miner", "Transactions", "BlockType"}}
	for _, b := range blocks {
		id := b.Hash().String()
		blockType := "normal"
		if b.IsGenesis() {
			blockType = "genesis"
		}
		rows = append(rows, []string{
			id,
			id[:10],
			strconv.Itoa(b.Miner()),
			strconv.Itoa(b.NumTransactions()),
			blockType,
		})
	}
	return rows
}

func chainEdges(blocks []*simulation.Block) [][]string {
	rows := [][]string{{"Source", "Target"}}
	for _, b := range blocks {
		parent, ok := b.Parent()
		if !ok {
			continue
		}
		rows = append(rows, []string{parent.String(), b.Hash().String()})
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
