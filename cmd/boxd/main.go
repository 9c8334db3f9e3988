// Command boxd reads Letterboxd collections and films from the command line.
//
//	boxd watchlist dave --resolve 20
//	boxd list dave official-top-250 --format jsonl
//	boxd film heat
//
// Settings come from boxd.json5 (merged with boxd.local.json5), BOXD_*
// environment variables and flags, in increasing priority.
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

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
