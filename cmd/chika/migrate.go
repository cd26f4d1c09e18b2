package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

const migrateUsage = `Database Migration Commands

Usage:
  chika migrate <command> [options] [argument]

Commands:
  up          Apply all pending migrations
  down        Roll back the last migration
  down-all    Roll back every migration
  steps <n>   Apply (n > 0) or roll back (n < 0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show database type and version

Options:
  --config <path>     Path to configuration file (YAML)
  --driver <name>     Database driver: postgres, mysql, sqlite (default: from config)
  --database <name>   Database name, or file path for sqlite (default: from config)

Examples:
  chika migrate up --config /etc/chika/config.yaml
  chika migrate steps -1
  chika migrate status --driver sqlite --database ./chika.db`

// runMigrate 解析 migrate 子命令并执行，输出写入 out
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || isHelp(args[0]) {
		fmt.Fprintln(out, migrateUsage)
		if len(args) == 0 {
			return errors.New("missing migrate command")
		}
		return nil
	}
	command := args[0]

	fs := flag.NewFlagSet("migrate "+command, flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	driver := fs.String("driver", "", "Database driver")
	database := fs.String("database", "", "Database name or sqlite file path")
	// steps 的参数可以为负数，先取出位置参数避免被当作 flag
	positional, flagArgs := splitPositional(args[1:])
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}
	if *database != "" {
		cfg.Database.Name = *database
	}
	if cfg.Database.Driver == "" {
		return errors.New("database driver not configured (set database.driver or --driver)")
	}

	logger := initLogger(cfg.Log).With(zap.String("command", "migrate"))
	defer func() { _ = logger.Sync() }()

	m, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("failed to close migrator", zap.Error(cerr))
		}
	}()

	cli := migration.NewCLI(m)
	cli.SetOutput(out)
	if err := cli.Run(ctx, command, positional); err != nil {
		if errors.Is(err, migration.ErrUnknownCommand) {
			fmt.Fprintln(out, migrateUsage)
		}
		return err
	}
	return nil
}

// splitPositional 把开头的非 flag 参数（含负数）与其余参数分开
func splitPositional(args []string) (positional, rest []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") && !isNumber(a) {
			return positional, args[i:]
		}
		positional = append(positional, a)
	}
	return positional, nil
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}

// loadConfig 加载配置文件与 CHIKA_ 环境变量
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithEnvPrefix(config.DefaultEnvPrefix)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
