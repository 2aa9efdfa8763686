// Command annex creates, trains, fills and queries annex index files.
//
//	annex create --path items.anx --dim 128 --desc IVF256,PQ16
//	annex train  --path items.anx --input learn.fvecs
//	annex add    --path items.anx --input base.fvecs
//	annex search --path items.anx --query queries.fvecs -k 10
//	annex info   --path items.anx
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
