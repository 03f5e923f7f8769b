package viz

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreekarashastry/powsim/simulation"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteChainCSV(t *testing.T) {
	bc := simulation.NewBlockchain(100)
	a := bc.CreateBlock([]simulation.Transaction{
		{Sender: 0, Receiver: 1, Amount: 3},
		simulation.NewCoinbase(0, 50, 1),
	}, 0)
	bc.AddBlock(a)

	prefix := filepath.Join(t.TempDir(), "chain")
	require.NoError(t, WriteChainCSV(prefix, bc.Blocks()))

	nodes := readCSV(t, prefix+".nodes.csv")
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"ID", "Label", "Miner", "Transactions", "BlockType"}, nodes[0])
	assert.Equal(t, "genesis", nodes[1][4])
	assert.Equal(t, a.Hash().String(), nodes[2][0])
	assert.Equal(t, "0", nodes[2][2])
	assert.Equal(t, "2", nodes[2][3])

	edges := readCSV(t, prefix+".edges.csv")
	assert.Equal(t, [][]string{
		{"Source", "Target"},
		{simulation.GenesisHash.String(), a.Hash().String()},
	}, edges)
}

func TestWriteTopologyCSV(t *testing.T) {
	adjacency := [][]bool{
		{false, true, true},
		{true, false, false},
		{true, false, false},
	}
	prefix := filepath.Join(t.TempDir(), "topology")
	require.NoError(t, WriteTopologyCSV(prefix, adjacency))

	assert.Equal(t, [][]string{
		{"ID", "Label", "Degree"},
		{"0", "0", "2"},
		{"1", "1", "1"},
		{"2", "2", "1"},
	}, readCSV(t, prefix+".nodes.csv"))
	assert.Equal(t, [][]string{
		{"Source", "Target", "Type"},
		{"0", "1", "Undirected"},
		{"0", "2", "Undirected"},
	}, readCSV(t, prefix+".edges.csv"))
}

func TestWriteCSVErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir")
	assert.Error(t, WriteTopologyCSV(missing, [][]bool{{false}}))
	assert.Error(t, WriteChainCSV(missing, nil))
}
