// Command ledgerctl reads the purchase ledger from a terminal.
//
//	ledgerctl monthly [-n 12]
//	ledgerctl daily [-from 2024-01-01] [-to 2024-01-31]
//	ledgerctl list [-limit 20]
//	ledgerctl show <purchase-id>
//	ledgerctl seed [-list] <scenario>
//
// It opens the same store the server is configured with (.env and
// environment), unless -db points it at a SQLite file.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/warp/backoffice/config"
)

func main() {
	_ = config.LoadDotEnv()
	cfg := config.Load()

	flag.StringVar(&cfg.SQLiteDBPath, "db", cfg.SQLiteDBPath, "SQLite database path (selects the sqlite backend)")
	flag.StringVar(&currency, "currency", "USD", "ISO 4217 display currency")
	flag.BoolVar(&plain, "plain", false, "print raw markdown instead of rendering it")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(cfg) {
		commander.Register(c, "")
	}

	flag.Parse()
	if isFlagSet("db") {
		cfg.DataBackend = config.BackendSQLite
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
