package rpc

import (
	"net"
	"net/http"

	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
)

// StartHTTPServer serves the Routes on addr (e.g. "tcp://0.0.0.0:26657") and
// returns the listener for shutdown.
func StartHTTPServer(addr string, logger log.Logger) (net.Listener, error) {
	mux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(mux, Routes, logger)

	config := rpcserver.DefaultConfig()
	listener, err := rpcserver.Listen(addr, config)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := rpcserver.Serve(listener, mux, logger, config); err != nil {
			logger.Info("rpc server stopped", "err", err)
		}
	}()
	return listener, nil
}
