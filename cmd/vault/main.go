package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ladzaretti/vaultagent/cli"
	"github.com/ladzaretti/vaultagent/genericclioptions"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := cli.NewDefaultVltCommand(genericclioptions.NewDefaultIOStreams(), os.Args[1:])

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("vault: %v", err)
	}
}
