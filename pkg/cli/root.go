package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/cashpro/pkg/config"
	"github.com/platinummonkey/cashpro/pkg/database"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// OpenFunc opens a connection pool. database.Open in production.
type OpenFunc func(ctx context.Context, url string, cfg database.PoolConfig) (*sql.DB, error)

// Env is what commands run against.
type Env struct {
	Config *config.Config
	Logger *observability.Logger
	Out    io.Writer
	Open   OpenFunc
	Now    func() time.Time
}

func (e *Env) withDefaults() *Env {
	out := *e
	if out.Logger == nil {
		out.Logger = observability.NewDiscardLogger()
	}
	if out.Out == nil {
		out.Out = os.Stdout
	}
	if out.Open == nil {
		out.Open = database.Open
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

func (e *Env) controlDB(ctx context.Context) (*sql.DB, error) {
	db, err := e.Open(ctx, e.Config.Database.ControlURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to control database: %w", err)
	}
	return db, nil
}

func (e *Env) printf(format string, args ...interface{}) {
	fmt.Fprintf(e.Out, format, args...)
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env, args []string) error
	Subcommands map[string]*Command
}

// NewRootCommand creates the cashpro-admin root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "cashpro-admin",
		Description: "cashpro-admin - control plane operator tasks",
		Subcommands: make(map[string]*Command),
	}

	for _, cmd := range []*Command{
		newMigrateCommand(),
		newInitSuperAdminCommand(),
		newProvisionCommand(),
		newSweepSessionsCommand(),
		newPruneAuditCommand(),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by args[0].
func (c *Command) Execute(ctx context.Context, env *Env, args []string) error {
	env = env.withDefaults()
	if len(args) == 0 || isHelp(args[0]) {
		return c.usage(env.Out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, env, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func isHelp(arg string) bool {
	return strings.EqualFold(arg, "-h") || strings.EqualFold(arg, "--help") || strings.EqualFold(arg, "help")
}

// usage prints the command usage
func (c *Command) usage(w io.Writer) error {
	fmt.Fprintf(w, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(w, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	return flags
}
