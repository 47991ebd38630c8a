// Command ledgersync imports financial records from an OAuth2 accounting service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/config"
	"github.com/custodia-labs/ledgersync/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	cli.SetVersion(version)
	cli.SetBuilder(func(ctx context.Context, opts cli.Options) (*cli.Services, error) {
		return build(ctx, cfg, opts)
	})

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
