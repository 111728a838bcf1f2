package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meal-guardrails/internal/cli"
	"meal-guardrails/internal/pkg/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCmd().ExecuteContext(ctx)
	common.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
