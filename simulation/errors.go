package simulation

import "errors"

var (
	ErrInvalidConfig        = errors.New("invalid simulation config")
	ErrDisconnectedTopology = errors.New("could not generate a connected topology")
	ErrEmptyQueue           = errors.New("event queue is empty")
	ErrUnknownBlock         = errors.New("unknown block")
	ErrOrphanBlock          = errors.New("block is not connected to genesis")
	ErrUnknownPolicy        = errors.New("unknown withholding policy")
)
