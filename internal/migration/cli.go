package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// ErrUnknownCommand Run 遇到未知子命令
var ErrUnknownCommand = errors.New("unknown migrate command")

// Commands chika migrate 支持的子命令
var Commands = []string{"up", "down", "down-all", "steps", "goto", "force", "version", "status", "info"}

// CLI 把 Migrator 的结果写成终端输出
type CLI struct {
	migrator Migrator
	out      io.Writer
}

func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, out: os.Stdout}
}

// SetOutput 替换输出，默认 os.Stdout
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// Run 执行子命令；空命令等同 status
func (c *CLI) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "up":
		c.say("Applying pending migrations...")
		return c.thenVersion(ctx, "Schema is up to date", c.migrator.Up(ctx))
	case "down":
		c.say("Rolling back last migration...")
		return c.thenVersion(ctx, "Rollback complete", c.migrator.Down(ctx))
	case "down-all":
		c.say("Rolling back all migrations...")
		if err := c.migrator.DownAll(ctx); err != nil {
			return err
		}
		c.say("All migrations rolled back.")
		return nil
	case "steps":
		n, err := numberArg(cmd, args)
		if err != nil {
			return err
		}
		return c.RunSteps(ctx, n)
	case "goto":
		n, err := numberArg(cmd, args)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("goto: version must not be negative")
		}
		c.say(fmt.Sprintf("Migrating to version %d...", n))
		return c.thenVersion(ctx, "Migration complete", c.migrator.Goto(ctx, uint(n)))
	case "force":
		n, err := numberArg(cmd, args)
		if err != nil {
			return err
		}
		if err := c.migrator.Force(ctx, n); err != nil {
			return err
		}
		c.say(fmt.Sprintf("Version forced to %d", n))
		return nil
	case "version":
		return c.RunVersion(ctx)
	case "status", "":
		return c.RunStatus(ctx)
	case "info":
		return c.RunInfo(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

func numberArg(cmd string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: expected exactly one numeric argument", cmd)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", cmd, args[0])
	}
	return n, nil
}

// RunSteps n>0 前进，n<0 回滚
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	switch {
	case n > 0:
		c.say(fmt.Sprintf("Applying %d migration(s)...", n))
	case n < 0:
		c.say(fmt.Sprintf("Rolling back %d migration(s)...", -n))
	default:
		return errors.New("steps: n must not be zero")
	}
	return c.thenVersion(ctx, "Complete", c.migrator.Steps(ctx, n))
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		c.say("No migrations applied yet.")
	case dirty:
		c.say(fmt.Sprintf("Current version: %d (dirty)", version))
	default:
		c.say(fmt.Sprintf("Current version: %d", version))
	}
	return nil
}

// RunStatus 每个迁移一行，末尾附汇总
func (c *CLI) RunStatus(ctx context.Context) error {
	report, err := c.migrator.Report(ctx)
	if err != nil {
		return err
	}
	if len(report.Migrations) == 0 {
		c.say("No migrations found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	for _, mig := range report.Migrations {
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", mig.Version, mig.Name, report.State(mig))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n",
		len(report.Migrations), report.Applied(), report.Pending())
	return nil
}

func (c *CLI) RunInfo(ctx context.Context) error {
	report, err := c.migrator.Report(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "Migration Information:")
	fmt.Fprintf(tw, "  Current Version:\t%d\n", report.Version)
	fmt.Fprintf(tw, "  Dirty:\t%v\n", report.Dirty)
	fmt.Fprintf(tw, "  Total Migrations:\t%d\n", len(report.Migrations))
	fmt.Fprintf(tw, "  Applied Migrations:\t%d\n", report.Applied())
	fmt.Fprintf(tw, "  Pending Migrations:\t%d\n", report.Pending())
	return tw.Flush()
}

// thenVersion 操作成功后打印当前版本
func (c *CLI) thenVersion(ctx context.Context, done string, opErr error) error {
	if opErr != nil {
		return opErr
	}
	version, _, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	c.say(fmt.Sprintf("%s. Current version: %d", done, version))
	return nil
}

func (c *CLI) say(line string) {
	fmt.Fprintln(c.out, line)
}
