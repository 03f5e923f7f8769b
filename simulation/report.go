package simulation

// AttackerReport summarises how one withholding node did.
type AttackerReport struct {
	Node      int
	Strategy  string
	HashPower float64
	// Blocks the attacker mined, published or not.
	Mined int
	// Blocks of the attacker on the final chain.
	OnChain int
	// Share of the final chain mined by the attacker.
	MPU float64
}

// Report is the outcome of a run.
type Report struct {
	RunID     string
	Events    int
	SimTime   float64
	Exhausted bool
	// Blocks mined by all nodes together.
	TotalMined int
	// Length of every node's longest chain, genesis included.
	ChainLengths []int
	Orphans      []int
	// Blocks on the finally adopted chain, genesis excluded.
	FinalChainLength int
	// Share of all mined blocks that made it into the final chain.
	MPUTotal float64
	// Combined share of the final chain mined by withholding nodes.
	MPUAdversary float64
	Attackers    []AttackerReport
}

// FinalChain is the chain the network finally adopts: the longest among
// the honest nodes' longest chains and every attacker's chain including
// its withheld blocks. Honest chains are considered first and a candidate
// only wins by being strictly longer.
func (sim *Simulation) FinalChain() []*Block {
	var best []*Block
	consider := func(chain []*Block) {
		if len(chain) > len(best) {
			best = chain
		}
	}
	for _, node := range sim.nodes {
		if !node.Strategy().Withholds() {
			consider(node.Chain().LongestChain())
		}
	}
	for _, id := range sim.attackers {
		consider(sim.nodes[id].MiningChain())
	}
	return best
}

// Report computes the run statistics from the current state.
func (sim *Simulation) Report() *Report {
	r := &Report{
		RunID:        sim.runID,
		Events:       sim.events,
		SimTime:      sim.now,
		Exhausted:    sim.exhausted,
		ChainLengths: make([]int, len(sim.nodes)),
		Orphans:      make([]int, len(sim.nodes)),
	}
	for i, node := range sim.nodes {
		r.TotalMined += node.Mined()
		r.ChainLengths[i] = node.Chain().TipHeight() + 1
		r.Orphans[i] = node.Chain().Orphans()
	}

	final := sim.FinalChain()
	if len(final) > 0 {
		// Genesis does not count as mined.
		final = final[1:]
	}
	r.FinalChainLength = len(final)
	if r.TotalMined > 0 {
		r.MPUTotal = float64(r.FinalChainLength) / float64(r.TotalMined)
	}

	minedBy := make(map[int]int)
	for _, b := range final {
		minedBy[b.Miner()]++
	}
	onChain := 0
	for _, id := range sim.attackers {
		node := sim.nodes[id]
		ar := AttackerReport{
			Node:      id,
			Strategy:  node.Strategy().String(),
			HashPower: node.HashPower(),
			Mined:     node.Mined(),
			OnChain:   minedBy[id],
		}
		if r.FinalChainLength > 0 {
			ar.MPU = float64(ar.OnChain) / float64(r.FinalChainLength)
		}
		onChain += ar.OnChain
		r.Attackers = append(r.Attackers, ar)
	}
	if r.FinalChainLength > 0 {
		r.MPUAdversary = float64(onChain) / float64(r.FinalChainLength)
	}
	return r
}
