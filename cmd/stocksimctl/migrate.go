package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/yourorg/stocksim/internal/config"
	pgRepo "github.com/yourorg/stocksim/internal/repository/postgres"
)

type migrateCmd struct {
	path string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `stocksimctl migrate [-path <dir>]

  Applies every pending migration to DATABASE_URL.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "", "Migrations directory. Defaults to MIGRATIONS_PATH.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.Store != config.StorePostgres {
		fmt.Fprintf(os.Stderr, "migrate needs STORE=%s\n", config.StorePostgres)
		return subcommands.ExitUsageError
	}
	dir := c.path
	if dir == "" {
		dir = cfg.MigrationsPath
	}
	if err := pgRepo.RunMigrations(cfg.DatabaseURL, dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("migrations applied")
	return subcommands.ExitSuccess
}
