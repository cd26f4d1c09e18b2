// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供协作讨论（Discussion）的持久化存储抽象及多后端实现。

# 概述

当两个 responder 意见不一致时，协作引擎会创建一条讨论记录，逐轮追加
发言，并在达成共识或轮数耗尽时写入最终状态。本包负责保存这些记录，
供 HTTP 接口查询与审计。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - DiscussionStore: 讨论持久化接口，支持创建、更新、按 ID 查询
    以及按房间倒序列出。

# 核心模型

  - Discussion: 讨论记录，状态机为 ongoing → resolved | timeout，
    终态不可逆；Resolve / Expire 负责校验状态流转。
  - DiscussionMessage: 一条发言（responder、内容、时间）。

# 后端实现

  - Memory: 内存实现，深拷贝读写，适合开发与测试。
  - File: 每条讨论一个 JSON 文件，原子写入，适合单节点部署。
  - Redis: JSON 值 + 按房间的 Sorted Set 索引，适合分布式部署。
  - SQL: 基于 gorm 的 discussions 表，支持 postgres / mysql / sqlite。

# 使用方式

	store, err := persistence.NewDiscussionStore(cfg, persistence.Backends{Redis: client, DB: db})
*/
package persistence
