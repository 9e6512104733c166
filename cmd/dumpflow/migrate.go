package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

func runMigrate(args []string, out io.Writer) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(out)
		if len(args) < 1 {
			return errUsage
		}
		return nil
	}
	sub := args[0]

	fs := pflag.NewFlagSet("migrate "+sub, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to config file (YAML)")
	dbType := fs.String("db-type", "", "database type: postgres, mysql, sqlite (default: from config)")
	dbURL := fs.String("db-url", "", "database connection URL (default: from config)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(out)

	ctx, stop := signalContext()
	defer stop()
	return cli.Run(ctx, sub, fs.Args())
}

// createMigrator 优先使用 --db-type/--db-url，否则读取配置
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage(out io.Writer) {
	fmt.Fprintf(out, `Database Migration Commands

Usage:
  dumpflow migrate <subcommand> [args] [options]

Subcommands:
  %s

  steps <n>   Apply (n > 0) or roll back (n < 0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)

Options:
  -c, --config <path>   Path to configuration file (YAML)
  --db-type <type>      Database type: postgres, mysql, sqlite
  --db-url <url>        Database connection URL

Examples:
  dumpflow migrate up
  dumpflow migrate status --config /etc/dumpflow/config.yaml
  dumpflow migrate goto 1
  dumpflow migrate up --db-type sqlite --db-url file:dumpflow.db
`, strings.Join(migration.Commands, ", "))
}
