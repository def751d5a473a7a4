package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"auctionbft/orderpool"
	"auctionbft/types"
)

type ResultSubmitOrder struct {
	ID types.OrderID `json:"id"`
}

// SubmitOrder admits an order into the pool; it becomes eligible for the next
// round's pre-proposal.
func SubmitOrder(ctx *rpctypes.Context, order types.Order) (*ResultSubmitOrder, error) {
	if err := env.Pool.AddOrder(order, orderpool.OrderInfo{}); err != nil {
		return nil, err
	}
	return &ResultSubmitOrder{ID: order.ID()}, nil
}

type ResultPoolInfo struct {
	Size int `json:"size"`
}

func PoolInfo(ctx *rpctypes.Context) (*ResultPoolInfo, error) {
	return &ResultPoolInfo{Size: env.Pool.Size()}, nil
}
