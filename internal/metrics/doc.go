// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、路由、协作、WebSocket 与数据库几个维度。

# 概述

Collector 通过 promauto.With 注册到调用方给定的 Registry（nil 时为默认
Registry），所有指标按 namespace 隔离。cmd/chika 使用独立 Registry，
在 metrics 端口上通过 promhttp 暴露。

# 核心类型

  - Collector：指标收集器，实现 llm.RouteObserver 与
    collaboration.Observer，可直接注入 Router 与协作引擎。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 路由指标：每个 responder 的尝试次数（success/error/skipped/fallback）
    与调用耗时。
  - 协作指标：按终态计数、讨论轮数分布、协作耗时。
  - WebSocket 指标：房间连接数 Gauge。
  - 数据库指标：打开/空闲连接数 Gauge，由 database.PoolManager 定期上报。
*/
package metrics
