package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/warp/backoffice/config"
	"github.com/warp/backoffice/generic"
	"github.com/warp/backoffice/ledger"
	"github.com/warp/backoffice/renderer"
	"github.com/warp/backoffice/scenarios"
	"github.com/warp/backoffice/store/postgres"
	"github.com/warp/backoffice/store/sqlite"
)

var (
	currency string
	plain    bool
)

const dateLayout = "2006-01-02"

func commands(cfg *config.Config) []subcommands.Command {
	return []subcommands.Command{
		&monthlyCmd{cfg: cfg},
		&dailyCmd{cfg: cfg},
		&listCmd{cfg: cfg},
		&showCmd{cfg: cfg},
		&seedCmd{cfg: cfg},
	}
}

// =============================================================================
// STORE AND OUTPUT
// =============================================================================

type backend interface {
	generic.Store
	generic.ProductStore
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.DataBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		s := postgres.New(pool)
		return s, func() { s.Close() }, nil
	case config.BackendMemory:
		return nil, nil, errors.New("the memory backend lives inside the server; use -db or DATA_BACKEND")
	default:
		s, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}

// printMarkdown renders md for the terminal, or prints it raw with -plain.
func printMarkdown(md string) {
	if plain {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// =============================================================================
// MONTHLY
// =============================================================================

type monthlyCmd struct {
	cfg    *config.Config
	months int
}

func (*monthlyCmd) Name() string     { return "monthly" }
func (*monthlyCmd) Synopsis() string { return "display purchase count and total per month" }
func (*monthlyCmd) Usage() string {
	return `ledgerctl monthly [-n <months>]

  Displays the last n months, current month included. n is clamped to 1..36;
  0 or less means 12.
`
}

func (c *monthlyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.months, "n", ledger.DefaultMonths, "number of months")
}

func (c *monthlyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, closeStore, err := openStore(ctx, c.cfg)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	rows, err := ledger.NewAggregator(s).MonthlyTotals(ctx, c.months)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.New(currency).Monthly(rows))
	return subcommands.ExitSuccess
}

// =============================================================================
// DAILY
// =============================================================================

type dailyCmd struct {
	cfg      *config.Config
	from, to string
}

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "display purchase count and total per day" }
func (*dailyCmd) Usage() string {
	return `ledgerctl daily [-from <date>] [-to <date>]

  Displays every day between from and to, both included (YYYY-MM-DD).
  Defaults to the last 30 days. Ranges longer than 366 days are shortened.
`
}

func (c *dailyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "first day (defaults to 29 days before -to)")
	f.StringVar(&c.to, "to", "", "last day (defaults to today)")
}

func (c *dailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	to := time.Now().UTC()
	if c.to != "" {
		d, err := time.Parse(dateLayout, c.to)
		if err != nil {
			return usage("invalid -to %q: %v", c.to, err)
		}
		to = d
	}
	from := to.AddDate(0, 0, -29)
	if c.from != "" {
		d, err := time.Parse(dateLayout, c.from)
		if err != nil {
			return usage("invalid -from %q: %v", c.from, err)
		}
		from = d
	}

	s, closeStore, err := openStore(ctx, c.cfg)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	rows, err := ledger.NewAggregator(s).DailyTotals(ctx, from, to)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.New(currency).Daily(rows))
	return subcommands.ExitSuccess
}

// =============================================================================
// LIST
// =============================================================================

type listCmd struct {
	cfg   *config.Config
	limit int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list recent purchases, newest first" }
func (*listCmd) Usage() string {
	return `ledgerctl list [-limit <n>]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 20, "maximum number of purchases")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, closeStore, err := openStore(ctx, c.cfg)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	purchases, err := ledger.NewReader(s).ListPurchases(ctx, c.limit)
	if err != nil {
		return fail(err)
	}

	r := renderer.New(currency)
	var b strings.Builder
	b.WriteString("# Recent purchases\n\n| Date | Id | Customer | Total |\n|---|---|---|---:|\n")
	for _, p := range purchases {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			p.Date.UTC().Format("2006-01-02 15:04"), p.ID, strings.ReplaceAll(p.CustomerName, "|", `\|`), r.Money(p.Total))
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

// =============================================================================
// SHOW
// =============================================================================

type showCmd struct {
	cfg *config.Config
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display one purchase with its lines" }
func (*showCmd) Usage() string {
	return `ledgerctl show <purchase-id>

  Unit prices are the ones frozen at purchase time; product names are current.
`
}

func (*showCmd) SetFlags(*flag.FlagSet) {}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage("show takes exactly one purchase id")
	}

	s, closeStore, err := openStore(ctx, c.cfg)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	detail, err := ledger.NewReader(s).GetPurchase(ctx, generic.PurchaseID(f.Arg(0)))
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.New(currency).Purchase(detail))
	return subcommands.ExitSuccess
}

// =============================================================================
// SEED
// =============================================================================

type seedCmd struct {
	cfg  *config.Config
	list bool
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "load a demo data set" }
func (*seedCmd) Usage() string {
	return `ledgerctl seed [-list] <scenario>

  Adds a demo catalog and purchase history ending today. The ledger is
  append-only: seed a fresh database.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list available scenarios")
}

func (c *seedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list {
		var b strings.Builder
		b.WriteString("# Scenarios\n\n| Id | Description |\n|---|---|\n")
		for _, s := range scenarios.List() {
			fmt.Fprintf(&b, "| %s | %s |\n", s.ID, s.Description)
		}
		printMarkdown(b.String())
		return subcommands.ExitSuccess
	}
	if f.NArg() != 1 {
		return usage("seed takes exactly one scenario id (see seed -list)")
	}

	s, closeStore, err := openStore(ctx, c.cfg)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	if err := scenarios.Load(ctx, s, f.Arg(0), time.Now()); err != nil {
		return fail(err)
	}
	fmt.Printf("Loaded scenario %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}
