// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 管理 CHIKA 的 Redis 连接。

Manager 根据 config.RedisConfig 创建唯一的 go-redis 客户端，启动时
Ping 一次，之后按 HealthCheckInterval 后台探活。redis 讨论存储与
redis token 存储通过 Client() 共用同一个连接池；/ready 通过 Ping
判断 Redis 是否可用。开启 TLS 时使用 tlsutil 的加固配置。
*/
package cache
