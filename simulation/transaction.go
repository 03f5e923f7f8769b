package simulation

import "fmt"

// CoinbaseSender is the sender id of the reward transaction a miner appends
// to every block it mines.
const CoinbaseSender = -1

// Transaction moves Amount coins from Sender to Receiver. Transactions are
// plain values: two transactions are the same transaction iff all fields match.
type Transaction struct {
	Sender    int
	Receiver  int
	Amount    int64
	Timestamp float64
}

func NewCoinbase(miner int, reward int64, time float64) Transaction {
	return Transaction{
		Sender:    CoinbaseSender,
		Receiver:  miner,
		Amount:    reward,
		Timestamp: time,
	}
}

func (tx Transaction) IsCoinbase() bool {
	return tx.Sender == CoinbaseSender
}

func (tx Transaction) String() string {
	return fmt.Sprintf("TxnID: ID%d pays ID%d %d coins", tx.Sender, tx.Receiver, tx.Amount)
}
