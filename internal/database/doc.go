// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 GORM 数据库连接并管理连接池。

# 核心类型

  - Open / Dialector：按 config.DatabaseConfig.Driver 选择
    postgres、mysql 或纯 Go 的 sqlite（glebarez/sqlite）方言。
  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close()。后台定时探活，并通过
    StatsRecorder 把连接数上报给 metrics.Collector。
  - PoolConfig：最大空闲连接数、最大打开连接数、连接生命周期、
    空闲超时与健康检查间隔。

SQL 讨论存储（persistence.SQLDiscussionStore）与迁移命令共享
这里打开的连接。
*/
package database
