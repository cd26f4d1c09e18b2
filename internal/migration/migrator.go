package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// 每个方言一个目录，文件名形如 000001_create_discussions.up.sql
//
//go:embed migrations/postgres/*.sql migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const (
	defaultTableName   = "schema_migrations"
	defaultLockTimeout = 15 * time.Second
)

// DatabaseType 迁移所针对的 SQL 方言
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

func (t DatabaseType) dir() string {
	return "migrations/" + string(t)
}

// ParseDatabaseType 解析驱动名，接受常见别名（pg、postgresql、mariadb、sqlite3）
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// Migration 一个内嵌的迁移
type Migration struct {
	Version uint
	Name    string
}

// Report 数据库当前的迁移状态
type Report struct {
	Version    uint
	Dirty      bool
	Migrations []Migration
}

// Applied 返回已应用的迁移数量
func (r *Report) Applied() int {
	n := 0
	for _, mig := range r.Migrations {
		if mig.Version <= r.Version {
			n++
		}
	}
	return n
}

// Pending 返回待应用的迁移数量
func (r *Report) Pending() int {
	return len(r.Migrations) - r.Applied()
}

// State 返回单个迁移的状态：Applied、Pending 或 Dirty
func (r *Report) State(mig Migration) string {
	switch {
	case r.Dirty && mig.Version == r.Version:
		return "Dirty"
	case mig.Version <= r.Version:
		return "Applied"
	default:
		return "Pending"
	}
}

// Config 迁移器配置
type Config struct {
	DatabaseType DatabaseType
	// TableName 版本表名，默认 schema_migrations
	TableName string
	// LockTimeout 等待迁移锁的时间，默认 15s
	LockTimeout time.Duration
}

// Migrator 是 chika migrate 与启动时自动迁移使用的操作集合
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	// Steps 正数向前应用 n 个迁移，负数回滚 n 个
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	// Force 只改写版本号并清除 dirty 标记，不执行任何 SQL
	Force(ctx context.Context, version int) error
	// Version 返回当前版本，尚未迁移时为 0
	Version(ctx context.Context) (uint, bool, error)
	Report(ctx context.Context) (*Report, error)
	Close() error
}

// DefaultMigrator 基于 golang-migrate，在调用方打开的 *sql.DB 上执行内嵌迁移。
// 与 SQL 讨论存储共用 gorm 选择的驱动（sqlite 为纯 Go 实现）。
type DefaultMigrator struct {
	dbType DatabaseType
	m      *migrate.Migrate
}

var _ Migrator = (*DefaultMigrator)(nil)

// NewMigrator 在已打开的连接上创建迁移器。Close 会一并关闭 db。
func NewMigrator(db *sql.DB, cfg Config) (*DefaultMigrator, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = defaultTableName
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}

	driver, err := databaseDriver(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, cfg.DatabaseType.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(cfg.DatabaseType), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.LockTimeout = cfg.LockTimeout

	return &DefaultMigrator{dbType: cfg.DatabaseType, m: m}, nil
}

func databaseDriver(db *sql.DB, cfg Config) (database.Driver, error) {
	switch cfg.DatabaseType {
	case DatabaseTypePostgres:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.TableName})
	case DatabaseTypeMySQL:
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: cfg.TableName})
	case DatabaseTypeSQLite:
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: cfg.TableName})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
}

// run 执行一次迁移操作，已是目标状态（ErrNoChange）不算错误
func run(op string, fn func() error) error {
	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}
	return nil
}

func (d *DefaultMigrator) Up(context.Context) error {
	return run("up", d.m.Up)
}

func (d *DefaultMigrator) Down(context.Context) error {
	return run("down", func() error { return d.m.Steps(-1) })
}

func (d *DefaultMigrator) DownAll(context.Context) error {
	return run("down all", d.m.Down)
}

func (d *DefaultMigrator) Steps(_ context.Context, n int) error {
	return run("steps", func() error { return d.m.Steps(n) })
}

func (d *DefaultMigrator) Goto(_ context.Context, version uint) error {
	return run("goto", func() error { return d.m.Migrate(version) })
}

func (d *DefaultMigrator) Force(_ context.Context, version int) error {
	if err := d.m.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}

func (d *DefaultMigrator) Version(context.Context) (uint, bool, error) {
	version, dirty, err := d.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Report 汇总当前版本与全部内嵌迁移
func (d *DefaultMigrator) Report(ctx context.Context) (*Report, error) {
	version, dirty, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := availableMigrations(d.dbType)
	if err != nil {
		return nil, err
	}
	return &Report{Version: version, Dirty: dirty, Migrations: migrations}, nil
}

// Close 关闭 migrate 实例，数据库驱动会同时关闭传入的 *sql.DB
func (d *DefaultMigrator) Close() error {
	sourceErr, dbErr := d.m.Close()
	if err := errors.Join(sourceErr, dbErr); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

// availableMigrations 列出方言目录下的 up 迁移，按版本升序
func availableMigrations(dbType DatabaseType) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, dbType.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if entry.IsDir() || !ok {
			continue
		}
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, Migration{Version: uint(version), Name: name})
	}

	slices.SortFunc(out, func(a, b Migration) int {
		return int(a.Version) - int(b.Version)
	})
	return slices.CompactFunc(out, func(a, b Migration) bool { return a.Version == b.Version }), nil
}
