package rpc

import rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpcserver.RPCFunc{
	"submit_order": rpcserver.NewRPCFunc(SubmitOrder, "order"),
	"pool_info":    rpcserver.NewRPCFunc(PoolInfo, ""),
	"status":       rpcserver.NewRPCFunc(Status, ""),
	"round":        rpcserver.NewRPCFunc(Round, "height"),
	"latest_round": rpcserver.NewRPCFunc(LatestRound, ""),
	"violations":   rpcserver.NewRPCFunc(Violations, "height"),
	"metrics":      rpcserver.NewRPCFunc(JSONMetrics, "label"),
}
