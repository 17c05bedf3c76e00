package common

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/obscura-labs/obscura/common"
)

// RunPprof serves the runtime profiles at `endpoint` until `ctx` is done.
func RunPprof(ctx context.Context, endpoint string) error {
	// Create a new mux just for the pprof endpoints to avoid using the
	// global multiplexer where pprof's init function registers by default.
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return common.RunServer(ctx, server, rootLogger.WithModule("pprof"))
}
