package rpc

import (
	"auctionbft/consensus"
	"auctionbft/libs/metric"
	"auctionbft/orderpool"
	"auctionbft/state"
	"auctionbft/store"
)

var env *Environment

func SetEnvironment(e *Environment) {
	env = e
}

// Environment holds the node components the rpc handlers read from.
type Environment struct {
	Pool     orderpool.OrderPool
	Round    *consensus.RoundStateMachine
	Executor *state.Executor
	Store    store.Store

	MetricSet *metric.MetricSet
}
