package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// CLI renders migration operations for a terminal
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI creates a new CLI instance writing to stdout
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput sets the output writer
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Commands lists the subcommands accepted by Run
var Commands = []string{"up", "down", "down-all", "steps", "goto", "force", "version", "status", "info"}

// Run dispatches a migrate subcommand; steps, goto and force take one numeric argument
func (c *CLI) Run(ctx context.Context, command string, args []string) error {
	numArg := func() (int64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s requires exactly one numeric argument", command)
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid number %q", command, args[0])
		}
		return n, nil
	}

	switch command {
	case "up":
		return c.RunUp(ctx)
	case "down":
		return c.RunDown(ctx)
	case "down-all":
		return c.RunDownAll(ctx)
	case "steps":
		n, err := numArg()
		if err != nil {
			return err
		}
		return c.RunSteps(ctx, int(n))
	case "goto":
		n, err := numArg()
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("goto: version must not be negative")
		}
		return c.RunGoto(ctx, uint(n))
	case "force":
		n, err := numArg()
		if err != nil {
			return err
		}
		return c.RunForce(ctx, int(n))
	case "version":
		return c.RunVersion(ctx)
	case "status":
		return c.RunStatus(ctx)
	case "info":
		return c.RunInfo(ctx)
	default:
		return fmt.Errorf("unknown migrate command %q (want one of %v)", command, Commands)
	}
}

func (c *CLI) reportVersion(ctx context.Context, prefix string) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "%s. Current version: %d\n", prefix, info.CurrentVersion)
	return nil
}

// RunUp runs all pending migrations
func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.output, "Running migrations...")
	if err := c.migrator.Up(ctx); err != nil {
		return err
	}
	return c.reportVersion(ctx, "Migrations complete")
}

// RunDown rolls back the last migration
func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.output, "Rolling back last migration...")
	if err := c.migrator.Down(ctx); err != nil {
		return err
	}
	return c.reportVersion(ctx, "Rollback complete")
}

// RunDownAll rolls back all migrations
func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.output, "Rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.output, "All migrations rolled back.")
	return nil
}

// RunSteps applies or rolls back n migrations
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n >= 0 {
		fmt.Fprintf(c.output, "Applying %d migration(s)...\n", n)
	} else {
		fmt.Fprintf(c.output, "Rolling back %d migration(s)...\n", -n)
	}
	if err := c.migrator.Steps(ctx, n); err != nil {
		return err
	}
	return c.reportVersion(ctx, "Complete")
}

// RunGoto migrates to a specific version
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	fmt.Fprintf(c.output, "Migrating to version %d...\n", version)
	if err := c.migrator.Goto(ctx, version); err != nil {
		return err
	}
	return c.reportVersion(ctx, "Migration complete")
}

// RunForce forces the migration version
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Version forced to %d\n", version)
	return nil
}

// RunVersion shows the current migration version
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.output, "No migrations applied yet.")
		return nil
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(c.output, "Current version: %d%s\n", version, suffix)
	return nil
}

// RunStatus prints one line per embedded migration and a summary
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	applied := 0
	for _, s := range statuses {
		state := "Pending"
		switch {
		case s.Dirty:
			state = "Dirty"
		case s.Applied:
			state = "Applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n",
		len(statuses), applied, len(statuses)-applied)
	return nil
}

// RunInfo shows detailed migration information
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.output, "Migration Information:")
	fmt.Fprintf(c.output, "  Current Version:    %d\n", info.CurrentVersion)
	fmt.Fprintf(c.output, "  Dirty:              %v\n", info.Dirty)
	fmt.Fprintf(c.output, "  Total Migrations:   %d\n", info.TotalMigrations)
	fmt.Fprintf(c.output, "  Applied Migrations: %d\n", info.AppliedMigrations)
	fmt.Fprintf(c.output, "  Pending Migrations: %d\n", info.PendingMigrations)
	return nil
}
