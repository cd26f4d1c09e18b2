// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理讨论记录表（discussions）的 Schema 版本，支持
PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌，经 iofs 源驱动交给
golang-migrate。迁移器不自行拨号，而是复用 internal/database.Open
打开的 gorm 连接底层 *sql.DB，因此与 SQL 讨论存储使用同一套驱动。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Report/Close；Report 汇总当前版本与全部内嵌迁移。
  - Config：方言、迁移表名与锁超时。
  - CLI：`chika migrate <command>` 的终端输出层，Run 负责分发子命令。

# 使用

	m, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return migration.NewCLI(m).Run(ctx, "up", nil)
*/
package migration
