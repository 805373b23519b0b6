// Command docsearch queries and serves mdBook search indexes from the
// terminal.
//
// Usage:
//
//	docsearch query book/searchindex.js metastore --limit 5
//	docsearch inspect book/searchindex.js
//	docsearch terms book/searchindex.js body meta
//	docsearch mcp book/searchindex.js
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
